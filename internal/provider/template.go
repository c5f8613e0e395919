package provider

import (
	"context"
	"fmt"
	"strings"
)

// TemplateName is the tag identifying a templated (degraded) reply.
const TemplateName = "gen_local"

// Template is the deterministic last-resort generator. It never fails and
// never calls the network, so the chat path always has some answer.
type Template struct{}

var _ Provider = Template{}

// Name returns the degraded-path tag.
func (Template) Name() string {
	return TemplateName
}

// Generate produces a canned reply from the latest user turn and the
// requested mode.
func (Template) Generate(_ context.Context, req Request) (Reply, error) {
	text := strings.TrimSpace(lastUserText(req.Messages))
	return Reply{Text: render(text, req.Mode), Used: UsedLocal}, nil
}

func render(text, mode string) string {
	if text == "" {
		return "(mode local) Décris ta situation pour que je propose une prochaine étape alignée 6S/6R."
	}

	low := strings.ToLower(text)
	if strings.Contains(low, "qui es-tu") || strings.Contains(low, "qui es tu") {
		return "Je suis Passerelle, instance locale gouvernée 6S/6R. Je journalise en JSONL et t'aide à piloter les flux internes sans cloud."
	}
	if strings.Contains(low, "quelle est ta mission") {
		return "Ma mission est de guider l'opérateur ou l'opératrice vers la prochaine action concrète, avec sûreté, souveraineté et responsabilité."
	}

	switch mode {
	case ModeResume:
		return fmt.Sprintf("Synthèse rapide : %s", truncateRunes(text, 240))
	case ModeActions:
		return "Actions suggérées :\n" +
			"1. Identifier les données utiles.\n" +
			"2. Vérifier le journal local pour les événements récents.\n" +
			"3. Proposer une étape alignée 6S/6R."
	default:
		return "Analyse locale : je te recommande de vérifier les journaux récents, d'expliciter le besoin précis et" +
			" de formuler la prochaine action opérationnelle." +
			fmt.Sprintf(" (Entrée reçue: %s)", truncateRunes(text, 200))
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
