package errors

type ErrMissingProvider struct {
	*Error
}

func NewMissingProviderError() *ErrMissingProvider {
	return &ErrMissingProvider{
		Error: newBase("no model provider configured"),
	}
}

type ErrMissingStore struct {
	*Error
}

func NewMissingStoreError() *ErrMissingStore {
	return &ErrMissingStore{
		Error: newBase("no tape store configured"),
	}
}

type ErrMissingTape struct {
	*Error
}

func NewMissingTapeError(tapeName string) *ErrMissingTape {
	return &ErrMissingTape{
		Error: newBase("tape %s does not exist", tapeName),
	}
}

type ErrMissingCredentials struct {
	*Error
}

func NewMissingCredentialsError(provider, envName string) *ErrMissingCredentials {
	return &ErrMissingCredentials{
		Error: newBase("provider %s has no API key; set %s or LLM_API_KEY", provider, envName),
	}
}
