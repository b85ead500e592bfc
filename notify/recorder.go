package notify

import "sync"

// Message is a recorded notification.
type Message struct {
	Success bool
	Text    string
}

// Recorder keeps all the notifications in order.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Success implements Sink interface.
func (r *Recorder) Success(message string) {
	r.add(Message{Success: true, Text: message})
}

// Failure implements Sink interface.
func (r *Recorder) Failure(message string) {
	r.add(Message{Success: false, Text: message})
}

// Messages returns a copy of the recorded notifications.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, len(r.messages))
	copy(out, r.messages)

	return out
}

// Failures returns texts of the recorded failures.
func (r *Recorder) Failures() []string {
	return r.filter(false)
}

// Successes returns texts of the recorded successes.
func (r *Recorder) Successes() []string {
	return r.filter(true)
}

// Reset drops the recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = nil
}

func (r *Recorder) add(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, m)
}

func (r *Recorder) filter(success bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0)
	for _, m := range r.messages {
		if m.Success == success {
			out = append(out, m.Text)
		}
	}

	return out
}
