package coach

import (
	"fmt"
	"strings"
	"time"

	"github.com/set-night/fitcoach/internal/domain"
)

const basePrompt = `Você é um treinador pessoal virtual que conversa com o aluno pelo chat.
Responda sempre em português do Brasil, de forma curta, calorosa e prática.

Regras:
- Use as ferramentas para consultar o perfil, o plano semanal e o catálogo de exercícios. Nunca invente dados do plano.
- Identificadores (plan_exercise_id, exercise_id) só podem vir de resultados de ferramentas. Nunca invente um identificador.
- Antes de trocar um exercício, confirme qual linha do plano será alterada usando get_weekly_plan.
- Quando o aluno relatar dor, passe o local da dor em pain_location ao buscar substitutos.
- Ao sugerir opções, use uma lista numerada com um exercício por linha.
- Se uma ferramenta retornar erro, explique o problema com simplicidade e proponha o próximo passo.
- Você não substitui um médico ou fisioterapeuta: em caso de dor forte ou persistente, recomende procurar um profissional.`

// systemPrompt derives the instructions from the user's profile. A nil
// profile yields the generic prompt.
func systemPrompt(p *domain.Profile, now time.Time) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	fmt.Fprintf(&b, "\n\nData de hoje: %s.", now.Format("2006-01-02"))

	if p == nil {
		return b.String()
	}

	b.WriteString("\n\nPerfil do aluno:")
	if p.FirstName != "" {
		fmt.Fprintf(&b, "\n- Nome: %s", p.FirstName)
	}
	if p.Goal != "" {
		fmt.Fprintf(&b, "\n- Objetivo: %s", p.Goal)
	}
	if p.ExperienceLevel != "" {
		fmt.Fprintf(&b, "\n- Nível: %s", p.ExperienceLevel)
	}
	if p.TrainingDays > 0 {
		fmt.Fprintf(&b, "\n- Dias de treino por semana: %d", p.TrainingDays)
	}
	if p.HasLimitations() {
		fmt.Fprintf(&b, "\n- Limitações/lesões: %s", strings.Join(p.Limitations, ", "))
	}
	return b.String()
}
