// Interactive helper: registers a server with a running serverwatch API and
// triggers its first check.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
)

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	key := os.Getenv("API_KEY")

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Domain to monitor (e.g. example.com): ")
	host, _ := reader.ReadString('\n')
	host = strings.TrimSpace(host)
	if host == "" {
		fmt.Println("No domain given.")
		return
	}

	fmt.Print("Expected status code [200]: ")
	raw, _ := reader.ReadString('\n')
	expected := 200
	if v := strings.TrimSpace(raw); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 100 || n > 599 {
			fmt.Println("Expected status must be an integer between 100 and 599.")
			return
		}
		expected = n
	}

	body, _ := json.Marshal(map[string]any{"domain": host, "expectedStatusCode": expected})
	var created struct {
		ID string `json:"id"`
	}
	if err := call(api+"/api/servers", key, body, &created); err != nil {
		fmt.Println("Add failed:", err)
		return
	}
	fmt.Println("Added server", created.ID)

	var check struct {
		Result struct {
			StatusCode int  `json:"statusCode"`
			IsOnline   bool `json:"isOnline"`
		} `json:"result"`
		Diagnostic string `json:"diagnostic"`
	}
	if err := call(api+"/api/servers/"+created.ID+"/check", key, nil, &check); err != nil {
		fmt.Println("Check failed:", err)
		return
	}
	if check.Result.IsOnline {
		fmt.Printf("Online (status %d)\n", check.Result.StatusCode)
	} else {
		fmt.Printf("Offline (status %d): %s\n", check.Result.StatusCode, check.Diagnostic)
	}
}

func call(url, key string, body []byte, out any) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
