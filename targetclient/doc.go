// Package targetclient provides a client for the myTarget advertising API.
//
// The client owns an OAuth2 session built on golang.org/x/oauth2. It attaches the
// current access token to every request, refreshes it against the API's token
// endpoint when it expires (or once after a 401 response), and reports every new
// token to an optional updater callback so callers can persist it.
//
// Responses are decoded into a Result: the JSON payload for 200 responses, or a
// no-content marker for 204. Every other status is returned as an *APIError
// whose Kind distinguishes validation failures (400), authentication failures
// (401) and everything else.
//
// Usage:
//
//	client, err := targetclient.NewClient(targetclient.Config{
//		BaseURL:      "https://target.my.com",
//		ClientID:     "your_client_id",
//		ClientSecret: "your_client_secret",
//		Scopes:       []string{"read_ads", "read_payments", "create_ads"},
//		Token:        &oauth2.Token{AccessToken: "...", RefreshToken: "..."},
//		TokenUpdater: func(t *oauth2.Token) { save(t) },
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Fetch the leads collected by a lead form
//	result, err := client.GetOKLead(ctx, "42", nil)
//
//	var apiErr *targetclient.APIError
//	if errors.As(err, &apiErr) && apiErr.Kind == targetclient.KindValidation {
//		fmt.Println(apiErr.Fields)
//	}
package targetclient
