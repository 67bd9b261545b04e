package ingest

import "testing"

func TestClassifyBySubjectRules(t *testing.T) {
	cases := []struct {
		subject   string
		candidate bool
		service   string
		urgency   string
	}{
		{"Esqueci minha senha do computador", true, "Acesso e Autenticação", "Média"},
		{"Outlook com a caixa cheia", true, "Correio Eletrônico", "Média"},
		{"OneDrive não sincroniza os arquivos", true, "Colaboração Microsoft 365", "Média"},
		{"Impressora do segundo andar parou", true, "Periféricos", "Alta"},
		{"VPN não conecta, urgente!", true, "Conectividade", "Alta"},
		{"Computador muito lento", true, "Estações de Trabalho", "Média"},
		{"Preciso de acesso à pasta do financeiro", false, "Arquivos e Permissões", "Média"},
		{"Criar usuário no active directory", false, "Identidade e Diretório", "Média"},
		{"Servidor de arquivos fora do ar", false, "Infraestrutura", "Média"},
	}

	for _, tc := range cases {
		got := ClassifyBySubject(tc.subject)
		if got.N1Candidate != tc.candidate {
			t.Errorf("%q: candidate = %v, want %v", tc.subject, got.N1Candidate, tc.candidate)
		}
		if got.SuggestedService != tc.service {
			t.Errorf("%q: service = %q, want %q", tc.subject, got.SuggestedService, tc.service)
		}
		if got.SuggestedUrgency != tc.urgency {
			t.Errorf("%q: urgency = %q, want %q", tc.subject, got.SuggestedUrgency, tc.urgency)
		}
		if got.Classifier != "rules" {
			t.Errorf("%q: classifier = %q, want rules", tc.subject, got.Classifier)
		}
	}
}

func TestClassifyBySubjectGenericFallback(t *testing.T) {
	got := ClassifyBySubject("Dúvida sobre um sistema interno")
	if !got.N1Candidate {
		t.Error("generic subject should default to an N1 candidate")
	}
	if got.SuggestedService != "Triagem" || got.SuggestedCategory != "Análise Inicial" {
		t.Errorf("generic fallback wrong: %+v", got)
	}
}

func TestClassifyBySubjectEmptySubject(t *testing.T) {
	got := ClassifyBySubject("")
	if !got.N1Candidate || got.SuggestedUrgency != defaultUrgency {
		t.Errorf("empty subject should use the generic fallback: %+v", got)
	}
}
