package narrative

import (
	"fmt"
	"strings"

	"b3-humor/internal/market"
)

var labels = map[market.IndicatorKey]string{
	market.Minerio: "Minério",
	market.Brent:   "Brent",
	market.VIX:     "VIX",
	market.Dolar:   "Dólar/Real",
	market.SPX:     "S&P 500",
	market.DXY:     "DXY (Índice Dólar)",
}

const promptHeader = `Você é um assistente de Day Trade. Sua tarefa é calcular o "Indicador Ponderado de Humor da B3" e fornecer uma análise.

Use esta fórmula exata:
Humor B3 = (0.35 * ΔMinério) + (0.30 * ΔBrent) - (0.15 * ΔVIX) - (0.20 * ΔDólar/Real)

Dados de entrada:
`

const promptLayout = `
Sua resposta deve ser APENAS o código HTML para ser injetado em uma <div>.
A resposta deve seguir exatamente esta estrutura:
1. Um <h3> com o título "📈 Interpretação do Cenário".
2. Um <p> com o resultado numérico (Ex: "O Indicador Ponderado de Humor da B3 é +0.3855.")
3. Um <h3> com o título "Conclusão: [Sentimento]".
4. Um <p> com a descrição do sentimento (Ex: "Este é um resultado positivo moderado...").
5. Um <h3> com o título "Fatores de Análise".
6. Parágrafos <p> descrevendo os fatores de suporte e pressão.

Não inclua '<html>', '<body>' ou blocos de código markdown. Apenas os elementos HTML (h3, p, etc.).
Seja direto e profissional.`

// BuildPrompt embeds the batch percentages into the fixed instructions.
// Optional indicators are listed after the formula inputs as context.
func BuildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for _, key := range RequiredFields {
		fmt.Fprintf(&b, "%s: %s%%\n", labels[key], in.Values[key])
	}
	var extra []market.IndicatorKey
	for _, key := range OptionalFields {
		if _, ok := in.Values[key]; ok {
			extra = append(extra, key)
		}
	}
	if len(extra) > 0 {
		b.WriteString("\nContexto adicional (fora da fórmula):\n")
		for _, key := range extra {
			fmt.Fprintf(&b, "%s: %s%%\n", labels[key], in.Values[key])
		}
	}
	b.WriteString(promptLayout)
	return b.String()
}

// StripFences removes markdown code-fence lines (```html, ```) the model
// sometimes wraps around its answer. Text without fences is returned as is.
func StripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if isFence(t) {
			continue
		}
		if strings.HasPrefix(t, "```") {
			line = trimFenceTag(t[3:])
		}
		if strings.HasSuffix(strings.TrimSpace(line), "```") {
			line = strings.TrimSuffix(strings.TrimSpace(line), "```")
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var fenceTags = map[string]bool{"html": true, "htm": true, "xhtml": true, "xml": true, "markdown": true, "md": true}

// trimFenceTag drops a language tag left after an opening fence when it is
// followed by whitespace or markup on the same line. Anything else is content.
func trimFenceTag(s string) string {
	i := 0
	for i < len(s) && (s[i] >= 'a' && s[i] <= 'z' || s[i] >= 'A' && s[i] <= 'Z') {
		i++
	}
	if i == 0 || i == len(s) || !fenceTags[strings.ToLower(s[:i])] {
		return s
	}
	switch s[i] {
	case ' ', '\t', '<':
		return strings.TrimLeft(s[i:], " \t")
	}
	return s
}

func isFence(t string) bool {
	if !strings.HasPrefix(t, "```") {
		return false
	}
	for _, r := range t[3:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
