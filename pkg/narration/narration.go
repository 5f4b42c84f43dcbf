package narration

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Speech actions.
const (
	ActionSpeak = "speak"
	ActionPause = "pause"
	ActionStop  = "stop"
)

// Speaker drives a client-side speech capability. Calls never block on playback.
type Speaker interface {
	Speak(text string)
	Pause()
	Stop()
}

// Command is one instruction for the client speech engine.
type Command struct {
	Action string `json:"action"`
	Script string `json:"script"`
}

// Publisher delivers an event without waiting. It reports false when the event was dropped.
type Publisher interface {
	Publish(event string, data any) bool
}

// EventName is the stream event carrying narration commands.
const EventName = "narration"

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
	"\u2028", " ",
	"\u2029", " ",
	"<", `\x3c`,
)

// EscapeText makes text safe to embed inside a quoted script string literal.
func EscapeText(text string) string {
	return strings.TrimSpace(escaper.Replace(text))
}

// SpeakScript cancels any utterance in flight and speaks text.
func SpeakScript(text string) string {
	return fmt.Sprintf(`const synth = window.speechSynthesis;
if (synth.speaking || synth.pending) { synth.cancel(); }
const utterance = new SpeechSynthesisUtterance("%s");
utterance.pitch = 1;
utterance.rate = 0.9;
synth.speak(utterance);`, EscapeText(text))
}

func PauseScript() string { return "window.speechSynthesis.pause();" }

func StopScript() string { return "window.speechSynthesis.cancel();" }

// Browser sends speech commands to the page through a Publisher.
type Browser struct {
	pub Publisher
}

func NewBrowser(pub Publisher) *Browser {
	return &Browser{pub: pub}
}

func (b *Browser) Speak(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.send(Command{Action: ActionSpeak, Script: SpeakScript(text)})
}

func (b *Browser) Pause() {
	b.send(Command{Action: ActionPause, Script: PauseScript()})
}

func (b *Browser) Stop() {
	b.send(Command{Action: ActionStop, Script: StopScript()})
}

func (b *Browser) send(cmd Command) {
	if b == nil || b.pub == nil {
		return
	}
	if !b.pub.Publish(EventName, cmd) {
		log.Debug("narration command dropped", "action", cmd.Action)
	}
}
