package ingest

import (
	"regexp"
	"strings"
)

// Classification is the preliminary N1-candidacy verdict for a ticket.
type Classification struct {
	N1Candidate       bool    `json:"n1_candidate"`
	Reason            string  `json:"reason"`
	SuggestedService  string  `json:"suggested_service"`
	SuggestedCategory string  `json:"suggested_category"`
	SuggestedUrgency  string  `json:"suggested_urgency"`
	Confidence        float64 `json:"confidence"`
	AdminRequired     bool    `json:"admin_required"`
	Classifier        string  `json:"classifier"` // rules | llm
}

type rule struct {
	re          *regexp.Regexp
	service     string
	category    string
	n1Candidate bool
}

// Subject patterns are matched against the lowercased subject. Patterns
// avoid \b next to accented letters, which Go's ASCII word boundary would
// mishandle.
var rules = []rule{
	{regexp.MustCompile(`senha|password|bloquead[ao]|expirad[ao]|redefini`), "Acesso e Autenticação", "Redefinição de Senha", true},
	{regexp.MustCompile(`2fa|mfa|\bduo\b|duas etapas|token`), "Acesso e Autenticação", "MFA/2FA", true},
	{regexp.MustCompile(`outlook|e-?mail|caixa (cheia|lotad[ao])|quota`), "Correio Eletrônico", "Outlook/Quota/Envio", true},
	{regexp.MustCompile(`onedrive|sharepoint|teams`), "Colaboração Microsoft 365", "Sincronização/Aplicativo", true},
	{regexp.MustCompile(`impressora|impress[aã]o|scanner`), "Periféricos", "Impressora/Scanner", true},
	{regexp.MustCompile(`\bvpn\b|globalprotect|anyconnect|forticlient`), "Conectividade", "VPN - Acesso Remoto", true},
	{regexp.MustCompile(`lento|travando|desempenho|espaço em disco`), "Estações de Trabalho", "Desempenho/Manutenção", true},
	{regexp.MustCompile(`permiss[aã]o|acesso (a|à|na|no) (pasta|compartilhamento)|liberar|compartilhar`), "Arquivos e Permissões", "Acesso/Permissões", false},
	{regexp.MustCompile(`novo usu[aá]rio|criar usu[aá]rio|alterar perfil|active directory|\bad\b`), "Identidade e Diretório", "Usuários/AD", false},
	{regexp.MustCompile(`instala(r|ç)|deploy|licen[cç]a`), "Software", "Instalação/Licenciamento", false},
	{regexp.MustCompile(`servidor|switch|roteador|wi-?fi|rede (caiu|fora|down)|storage|backup`), "Infraestrutura", "Rede/Servidores", false},
}

var urgencyHints = []struct {
	re      *regexp.Regexp
	urgency string
}{
	{regexp.MustCompile(`parad[ao]|parou|inoperante|n[aã]o consigo trabalhar`), "Alta"},
	{regexp.MustCompile(`urgente|urg[êe]ncia|imediat[oa]`), "Alta"},
	{regexp.MustCompile(`lento|intermitente`), "Média"},
}

const defaultUrgency = "Média"

// ClassifyBySubject applies the deterministic subject rules. It always
// returns a verdict; a subject matching nothing is treated as an N1
// candidate pending initial analysis.
func ClassifyBySubject(subject string) Classification {
	text := strings.ToLower(subject)

	urgency := defaultUrgency
	for _, h := range urgencyHints {
		if h.re.MatchString(text) {
			urgency = h.urgency
			break
		}
	}

	for _, r := range rules {
		if r.re.MatchString(text) {
			return Classification{
				N1Candidate:       r.n1Candidate,
				Reason:            "Regra: " + r.re.String(),
				SuggestedService:  r.service,
				SuggestedCategory: r.category,
				SuggestedUrgency:  urgency,
				Confidence:        0.6,
				Classifier:        "rules",
			}
		}
	}
	return Classification{
		N1Candidate:       true,
		Reason:            "N1 preliminar (assunto genérico)",
		SuggestedService:  "Triagem",
		SuggestedCategory: "Análise Inicial",
		SuggestedUrgency:  urgency,
		Confidence:        0.4,
		Classifier:        "rules",
	}
}
