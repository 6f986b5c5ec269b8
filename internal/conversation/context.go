package conversation

import (
	"fmt"
	"strings"

	"car-advisor/internal/models"
)

// BuildContext renders the history as the plain text block fed to refinement prompts.
func BuildContext(conv models.Conversation) string {
	var b strings.Builder
	if conv.Requirements != "" {
		fmt.Fprintf(&b, "Initial requirements: %s\n", conv.Requirements)
	}

	for i, turn := range conv.History {
		fmt.Fprintf(&b, "\nTurn %d (%s):\n", i+1, turn.Type)
		switch p := turn.Payload.(type) {
		case models.FindCarsPayload:
			fmt.Fprintf(&b, "User asked: %s\n", p.Requirements)
			writeResult(&b, p.Analysis, p.Cars)
		case models.RefineSearchPayload:
			fmt.Fprintf(&b, "User feedback: %s\n", p.Feedback)
			if len(p.PinnedCars) > 0 {
				fmt.Fprintf(&b, "Pinned: %s\n", carNames(p.PinnedCars))
			}
			writeResult(&b, p.Analysis, p.Cars)
		case models.AskAboutCarPayload:
			fmt.Fprintf(&b, "User asked about %s: %s\n", p.Car.DisplayName(), p.Question)
			fmt.Fprintf(&b, "Answer: %s\n", p.Answer)
		case models.GetAlternativesPayload:
			fmt.Fprintf(&b, "User wanted alternatives to %s\n", p.Car.DisplayName())
			writeResult(&b, p.Analysis, p.Cars)
		case models.CompareCarsPayload:
			fmt.Fprintf(&b, "User compared: %s\n", carNames(p.Cars))
			fmt.Fprintf(&b, "Comparison: %s\n", p.Analysis)
		}
	}
	return strings.TrimSpace(b.String())
}

func writeResult(b *strings.Builder, analysis string, cars []models.VehicleCandidate) {
	if analysis != "" {
		fmt.Fprintf(b, "Analysis: %s\n", analysis)
	}
	if len(cars) > 0 {
		fmt.Fprintf(b, "Suggested: %s\n", carNames(cars))
	}
}

func carNames(cars []models.VehicleCandidate) string {
	names := make([]string, 0, len(cars))
	for _, c := range cars {
		name := c.DisplayName()
		if c.Pinned {
			name += " (pinned)"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
