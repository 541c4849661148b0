package main

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Simulates a phone call against a running server by posting the same form
// webhooks the telephony transport would. Type utterances at the prompt;
// Ctrl-D ends the call.
func main() {
	baseURL := "http://localhost:5001"
	if u := os.Getenv("API_URL"); u != "" {
		baseURL = u
	}

	callSid := "CA" + strings.ReplaceAll(uuid.NewString(), "-", "")[:32]

	fmt.Println("========================================")
	fmt.Printf("Simulating call %s\n", callSid)
	fmt.Printf("Server: %s\n", baseURL)
	fmt.Println("========================================")
	fmt.Println()

	body := postWebhook(baseURL+"/answer", url.Values{
		"CallSid": {callSid},
		"From":    {"+15550199"},
	})
	speak(body)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		utterance := strings.TrimSpace(scanner.Text())

		body := postWebhook(baseURL+"/handle-response", url.Values{
			"CallSid":      {callSid},
			"SpeechResult": {utterance},
		})
		speak(body)

		if strings.Contains(body, "<Hangup") {
			fmt.Println("(call ended by agent)")
			break
		}
	}

	postWebhook(baseURL+"/call-status", url.Values{
		"CallSid":    {callSid},
		"CallStatus": {"completed"},
	})
	fmt.Println("Call completed.")
}

func postWebhook(endpoint string, form url.Values) string {
	resp, err := http.PostForm(endpoint, form)
	if err != nil {
		log.Fatalf("Webhook failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Webhook returned %d: %s", resp.StatusCode, data)
	}
	return string(data)
}

// speak prints the text of every Say verb in a voice document.
func speak(body string) {
	decoder := xml.NewDecoder(strings.NewReader(body))
	for {
		tok, err := decoder.Token()
		if err != nil {
			return
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Say" {
			continue
		}
		var text string
		if err := decoder.DecodeElement(&text, &start); err != nil {
			return
		}
		fmt.Printf("agent> %s\n", strings.TrimSpace(text))
	}
}
