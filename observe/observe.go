package observe

import "log/slog"

// Sink recebe erros reportados pelo core (transport falhou, retries esgotados...).
// O core nunca depende de logger global: quem monta o processo injeta o sink.
type Sink interface {
	Record(errorKind string, context map[string]any)
}

type slogSink struct {
	log *slog.Logger
}

// NewSlogSink adapts a slog.Logger into a Sink. Nil logger uses slog.Default().
func NewSlogSink(log *slog.Logger) Sink {
	if log == nil {
		log = slog.Default()
	}
	return &slogSink{log: log}
}

func (s *slogSink) Record(errorKind string, context map[string]any) {
	attrs := make([]any, 0, len(context)*2)
	for k, v := range context {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.log.Error(errorKind, attrs...)
}

// Discard é um sink que ignora tudo (útil em testes).
type Discard struct{}

func (Discard) Record(string, map[string]any) {}
