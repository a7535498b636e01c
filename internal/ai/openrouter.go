package ai

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouter speaks the OpenAI wire protocol; only the endpoint and the
// credential source differ.
func createOpenRouterFactory(args interface{}) (IProvider, error) {
	return newOpenAICompatible("openrouter", "OPENROUTER_API_KEY", defaultOpenRouterBaseURL, args)
}

func init() {
	Register("openrouter", createOpenRouterFactory)
}
