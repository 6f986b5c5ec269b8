// internal/llm/models.go
package llm

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FormatJSON asks the backend to constrain output to JSON.
const FormatJSON = "json"

// Message is one chat message. Images are raw bytes and only used with a vision model.
type Message struct {
	Role    Role
	Content string
	Images  [][]byte
}

func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }

// Options override the configured defaults for one call. Zero values keep the default.
type Options struct {
	Model       string
	Format      string
	Temperature *float64
	MaxTokens   int
}

func Temperature(v float64) *float64 { return &v }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Format   string        `json:"format,omitempty"`
	Stream   bool          `json:"stream"`
	Options  wireOptions   `json:"options"`
}

type wireMessage struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type wireOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}
