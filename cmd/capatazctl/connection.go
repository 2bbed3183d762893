package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/srand/capataz/pkg/log"
)

var httpClient = &http.Client{
	Transport: gzhttp.Transport(http.DefaultTransport),
}

func DefaultDeadlineContext() (context.Context, func()) {
	return context.WithDeadline(context.Background(), time.Now().Add(time.Second*30))
}

// Fetches a coordinator route and decodes its JSON response into result.
func GetJSON(route string, query url.Values, result any) {
	ctx, cancel := DefaultDeadlineContext()
	defer cancel()

	uri, err := url.JoinPath(configData.CoordinatorUri, route)
	if err != nil {
		log.Fatal(err)
	}
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Accept", "application/json")
	if configData.Username != "" {
		req.SetBasicAuth(configData.Username, configData.Password)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Fatal(fmt.Sprintf("%s: HTTP %d: %s", uri, resp.StatusCode, body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		log.Fatal(err)
	}
}
