package config

import "time"

const (
	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Typing indicator refresh; Telegram clears the action after ~5s.
	TypingRefresh = 4 * time.Second

	// Transient LLM failure backoff between retries
	RetryBackoff = 500 * time.Millisecond

	// Flood guard window
	RateLimitWindow = time.Minute

	// Replacement candidates returned by find_substitutes
	DefaultSubstituteLimit = 3
	MaxSubstituteLimit     = 10

	// HTTP server
	HTTPReadTimeout     = 30 * time.Second
	HTTPShutdownTimeout = 10 * time.Second
)

// User-facing fixed replies.
const (
	PreparingPlanText  = "Preparando seu plano... 📝"
	FallbackSuccess    = "Pronto! Seu treino foi atualizado. Quer que eu revise mais alguma coisa?"
	FallbackApology    = "Desculpe, não consegui concluir isso agora. Pode reformular ou tentar de novo?"
	UpstreamApology    = "Desculpe, estou com dificuldade para responder agora. Sua mensagem foi registrada, tente novamente em instantes."
	CooldownNotice     = "⏳ Calma! Aguarde %d segundo(s) antes de enviar outra mensagem."
	BusyNotice         = "⏳ Ainda estou respondendo sua mensagem anterior."
	RateLimitNotice    = "⏳ Muitas mensagens seguidas. Espere um pouco."
	UnknownUserNotice  = "👋 Não encontrei seu perfil. Conclua o cadastro no app para falar com o treinador."
	ResetNotice        = "🔄 Conversa reiniciada."
	ResetFailureNotice = "❌ Não consegui reiniciar a conversa."
	WelcomeText        = "👋 Olá, *%s*!\n\nSou seu treinador virtual. Posso explicar seu treino da semana, sugerir substitutos e trocar exercícios do seu plano.\n\n/reset — recomeçar a conversa\n\nÉ só mandar sua mensagem!"
)
