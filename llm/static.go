package llm

import "context"

// Static returns a Service that always replies with the given text.
// Used when no completion provider is configured, so the rest of the
// pipeline (detection, parsing, the conversation log) keeps working.
func Static(reply string) Service {
	return staticService{reply: reply}
}

type staticService struct {
	reply string
}

func (s staticService) Complete(_ context.Context, _ []Message) (string, error) {
	return s.reply, nil
}
