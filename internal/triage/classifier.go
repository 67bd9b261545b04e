package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/helpdeskbr/n1agent/internal/llm"
	"github.com/helpdeskbr/n1agent/internal/search"
)

// systemPrompt instructs the collaborator to act as an N1 agent grounded on
// the retrieved knowledge chunks and to answer in strict JSON.
const systemPrompt = `Você é um agente de suporte N1.
Objetivo: resolver o chamado com o menor número de interações, usando apenas a base de conhecimento fornecida.

Diretrizes:
- Se a KB já traz o procedimento, vá direto ao passo a passo.
- Faça no máximo uma pergunta por vez, curta e objetiva.
- Se exigir acesso de administrador, políticas de AD/servidores ou outra ação não N1, escale.
- Respostas curtas e claras, em PT-BR. Não invente informações fora da KB.

Responda APENAS em JSON:
{"intent": "rótulo curto do assunto", "action": "answer" | "ask_followup" | "resolve" | "escalate", "confidence": 0.0, "reply": "texto curto em PT-BR"}`

const (
	maxTicketBody  = 1500
	maxHistoryText = 1200
	maxChunkText   = 700
)

// classification is the collaborator's parsed decision.
type classification struct {
	Intent     string  `json:"intent"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reply      string  `json:"reply"`
}

func ticketContext(t Ticket) string {
	body := strings.ReplaceAll(strings.ReplaceAll(t.Description, "\r", " "), "\n", " ")
	body = truncate(strings.TrimSpace(body), maxTicketBody)
	var b strings.Builder
	if t.ID != "" {
		fmt.Fprintf(&b, "Ticket #%s\n", t.ID)
	}
	fmt.Fprintf(&b, "Assunto: %s\n", orPlaceholder(t.Subject, "(sem assunto)"))
	fmt.Fprintf(&b, "Primeira mensagem: %s", orPlaceholder(body, "(sem corpo)"))
	return b.String()
}

func knowledgeContext(hits []search.Hit) string {
	if len(hits) == 0 {
		return "KB: (sem resultados relevantes)"
	}
	lines := []string{"KB (trechos relevantes):"}
	for i, h := range hits {
		chunk := truncate(strings.TrimSpace(h.Text), maxChunkText)
		lines = append(lines, fmt.Sprintf("[%d] Título: %s\n%s", i+1, h.ArticleTitle, chunk))
	}
	return strings.Join(lines, "\n\n")
}

func historyMessages(history []HistoryMessage) []llm.Message {
	var msgs []llm.Message
	for _, m := range history {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		role := llm.RoleUser
		if m.Role == "assistant" {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: truncate(text, maxHistoryText)})
	}
	return msgs
}

// classify runs one collaborator call bounded by the configured timeout.
func (o *Orchestrator) classify(ctx context.Context, req TurnRequest, hits []search.Hit) (*classification, error) {
	if o.provider == nil {
		return nil, ErrClassificationUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: ticketContext(req.Ticket)},
		{Role: llm.RoleUser, Content: knowledgeContext(hits)},
	}
	msgs = append(msgs, historyMessages(req.History)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: req.Message})

	resp, err := o.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    msgs,
		MaxTokens:   600,
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationUnavailable, err)
	}

	var out classification
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &out); err != nil {
		// A malformed payload is a collaborator fault, not a low-confidence
		// result.
		return nil, fmt.Errorf("%w: invalid response payload", ErrClassificationUnavailable)
	}
	if out.Reply == "" {
		out.Reply = "Certo! Para te guiar melhor: em qual tela ou opção você está agora?"
	}
	return &out, nil
}

// truncate cuts s to at most max bytes without splitting a multi-byte rune,
// so truncated Portuguese text stays valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
