// Package twiml renders the voice-control documents the telephony transport
// executes: speak text, pause, gather speech, hang up.
package twiml

import (
	"encoding/xml"
)

// Response is the root TwiML document. Verbs execute in order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []interface{}
}

// Say speaks text to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Pause waits for the given number of seconds.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

// Gather listens for caller speech and posts the transcription to Action.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Timeout       int      `xml:"timeout,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr"`
}

// Hangup terminates the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// NewResponse creates an empty TwiML response.
func NewResponse() *Response {
	return &Response{}
}

// Say appends a Say verb.
func (r *Response) Say(voice, text string) *Response {
	r.Verbs = append(r.Verbs, Say{Voice: voice, Text: text})
	return r
}

// Pause appends a Pause verb.
func (r *Response) Pause(seconds int) *Response {
	r.Verbs = append(r.Verbs, Pause{Length: seconds})
	return r
}

// GatherSpeech appends a Gather verb configured for speech input with
// automatic end-of-speech detection.
func (r *Response) GatherSpeech(action string, timeoutSec int) *Response {
	r.Verbs = append(r.Verbs, Gather{
		Input:         "speech",
		Action:        action,
		Timeout:       timeoutSec,
		SpeechTimeout: "auto",
	})
	return r
}

// Hangup appends a Hangup verb.
func (r *Response) Hangup() *Response {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

// Render serializes the document with the XML declaration the transport
// expects.
func (r *Response) Render() (string, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return "", err
	}
	return xml.Header + string(body), nil
}

// MarshalXML flattens the verb list under <Response>.
func (r *Response) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "Response"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, verb := range r.Verbs {
		if err := e.Encode(verb); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}
