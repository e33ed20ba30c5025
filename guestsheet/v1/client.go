package v1

type GuestsheetClient struct {
	Transport *Transport
	Guests    *GuestEndpoint
}

// NewGuestsheetClient initializes the API client
func NewGuestsheetClient(baseURL string, tokens TokenSource) *GuestsheetClient {
	t := NewTransport(baseURL, tokens)
	return &GuestsheetClient{
		Transport: t,
		Guests:    &GuestEndpoint{transport: t},
	}
}
