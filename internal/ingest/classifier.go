package ingest

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/helpdeskbr/n1agent/internal/llm"
)

const classifySystemPrompt = `Você é um analista de suporte N1 experiente.
Decida se o usuário consegue resolver sozinho (N1) com base no assunto e no corpo do chamado.
Responda APENAS em JSON válido:
{"n1_candidate": bool, "confidence": 0.0, "rationale": "texto curto",
 "suggested_service": "string", "suggested_category": "string",
 "suggested_urgency": "Baixa" | "Média" | "Alta", "admin_required": bool}

Regras:
- n1_candidate=true para problemas guiáveis (senha, Outlook, VPN, impressora, OneDrive/Teams básicos).
- Se exigir admin/AD/servidores/permissões, admin_required=true e n1_candidate=false.`

type llmVerdict struct {
	N1Candidate       bool    `json:"n1_candidate"`
	Confidence        float64 `json:"confidence"`
	Rationale         string  `json:"rationale"`
	SuggestedService  string  `json:"suggested_service"`
	SuggestedCategory string  `json:"suggested_category"`
	SuggestedUrgency  string  `json:"suggested_urgency"`
	AdminRequired     bool    `json:"admin_required"`
}

// Classifier decides N1 candidacy for incoming tickets, preferring the
// collaborator and falling back to the subject rules when it is absent or
// fails.
type Classifier struct {
	provider llm.Provider
}

// NewClassifier creates a classifier. provider may be nil.
func NewClassifier(provider llm.Provider) *Classifier {
	return &Classifier{provider: provider}
}

// Classify produces a preliminary verdict for the ticket.
func (c *Classifier) Classify(ctx context.Context, subject, body string) Classification {
	if c.provider == nil {
		return ClassifyBySubject(subject)
	}
	verdict, err := c.classifyLLM(ctx, subject, body)
	if err != nil {
		log.Printf("ingest: collaborator classification failed, using rules: %v", err)
		return ClassifyBySubject(subject)
	}
	return *verdict
}

func (c *Classifier) classifyLLM(ctx context.Context, subject, body string) (*Classification, error) {
	if strings.TrimSpace(body) == "" {
		body = "(sem corpo; classificar pelo assunto) " + subject
	}

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: classifySystemPrompt},
			{Role: llm.RoleUser, Content: "Assunto: " + subject + "\n\nCorpo:\n" + body},
		},
		MaxTokens:   700,
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	var v llmVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &v); err != nil {
		return nil, err
	}
	if v.SuggestedUrgency == "" {
		v.SuggestedUrgency = defaultUrgency
	}

	// Admin-only work is never an N1 candidate regardless of what the
	// collaborator claimed, and low confidence falls back to human triage.
	candidate := v.N1Candidate && !v.AdminRequired && v.Confidence >= 0.5

	reason := v.Rationale
	if reason == "" {
		reason = "sem rationale"
	}
	return &Classification{
		N1Candidate:       candidate,
		Reason:            "LLM: " + reason,
		SuggestedService:  v.SuggestedService,
		SuggestedCategory: v.SuggestedCategory,
		SuggestedUrgency:  v.SuggestedUrgency,
		Confidence:        v.Confidence,
		AdminRequired:     v.AdminRequired,
		Classifier:        "llm",
	}, nil
}
