package resources

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// FetchHTTP
// Fetch a resource from a remote HTTP server with optional bearer token auth.
func FetchHTTP(uri string, auth string) (io.ReadCloser, error) {
	req, reqErr := http.NewRequest("GET", uri, nil)
	if reqErr != nil {
		return nil, reqErr
	}
	if auth != "" {
		req.Header.Add("Authorization", "Bearer "+auth)
	}
	resp, remoteErr := http.DefaultClient.Do(req)
	if remoteErr != nil {
		return nil, remoteErr
	}
	if resp.StatusCode != 200 {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP status code %d fetching %s",
			resp.StatusCode, uri)
	}
	return resp.Body, nil
}

// SizeHTTP
// Get the size of a resource from a remote HTTP server with optional bearer
// token auth.
func SizeHTTP(uri string, auth string) (uint, error) {
	req, reqErr := http.NewRequest("HEAD", uri, nil)
	if reqErr != nil {
		return 0, reqErr
	}
	if auth != "" {
		req.Header.Add("Authorization", "Bearer "+auth)
	}
	resp, remoteErr := http.DefaultClient.Do(req)
	if remoteErr != nil {
		return 0, remoteErr
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		return 0, fmt.Errorf("HTTP status code %d sizing %s",
			resp.StatusCode, uri)
	}
	size, _ := strconv.Atoi(resp.Header.Get("Content-Length"))
	return uint(size), nil
}

func isValidUrl(toTest string) bool {
	_, err := url.ParseRequestURI(toTest)
	if err != nil {
		return false
	}

	u, err := url.Parse(toTest)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}

	return true
}
