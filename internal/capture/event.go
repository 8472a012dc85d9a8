package capture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Event is one completion notification as received from the host,
// whatever the transport (HTTP hook, AJAX form post, AMQP message).
type Event struct {
	Hook                  string         `json:"hook"`
	UserID                string         `json:"user_id"`
	QuizID                int64          `json:"quiz_id"`
	IsFailedQuestionsQuiz bool           `json:"is_failed_questions_quiz"`
	Payload               map[string]any `json:"payload"`
}

type Completion struct {
	QuizID  int64
	Answers []Answer
	Decoder string
}

// Completion validates the event and decodes its answers.
func (e Event) Completion() (Completion, error) {
	if e.QuizID <= 0 {
		return Completion{}, fmt.Errorf("quiz_id %d: %w", e.QuizID, ErrInvalidRequest)
	}
	answers, name, err := Normalize(e.Payload)
	if err != nil {
		return Completion{}, err
	}
	return Completion{QuizID: e.QuizID, Answers: answers, Decoder: name}, nil
}

// ParseEvent decodes a JSON event. Without a "payload" object the whole
// document is the payload; quiz_id and the remedial flag may appear either
// in the envelope or in the payload.
func ParseEvent(b []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return Event{}, fmt.Errorf("decode event: %v: %w", err, ErrInvalidRequest)
	}
	return fromMap(doc), nil
}

// FromForm builds an event from a form post, expanding PHP-style bracket
// keys (questions_ids[0], ays_questions[ays-question-5]) into nested values.
func FromForm(hook, userID string, v url.Values) Event {
	e := fromMap(FormPayload(v))
	e.Hook = hook
	e.UserID = userID
	return e
}

func fromMap(doc map[string]any) Event {
	var e Event
	e.Hook, _ = doc["hook"].(string)
	if uid, ok := doc["user_id"]; ok && uid != nil {
		e.UserID = strings.TrimSpace(fmt.Sprint(uid))
	}
	payload, ok := doc["payload"].(map[string]any)
	if !ok {
		payload = doc
	}
	e.Payload = payload

	if id, ok := toInt64(doc["quiz_id"]); ok {
		e.QuizID = id
	} else if id, ok := toInt64(payload["quiz_id"]); ok {
		e.QuizID = id
	}
	_, inEnvelope := doc["is_failed_questions_quiz"]
	_, inPayload := payload["is_failed_questions_quiz"]
	switch {
	case inEnvelope:
		e.IsFailedQuestionsQuiz = truthy(doc["is_failed_questions_quiz"])
	case inPayload:
		e.IsFailedQuestionsQuiz = truthy(payload["is_failed_questions_quiz"])
	}
	return e
}

func FormPayload(v url.Values) map[string]any {
	root := map[string]any{}
	for key, vals := range v {
		base, path := splitBrackets(key)
		if len(path) == 0 {
			if len(vals) == 1 {
				root[base] = vals[0]
			} else {
				list := make([]any, len(vals))
				for i, s := range vals {
					list[i] = s
				}
				root[base] = list
			}
			continue
		}
		for _, val := range vals {
			assign(root, append([]string{base}, path...), val)
		}
	}
	return root
}

func splitBrackets(key string) (string, []string) {
	i := strings.IndexByte(key, '[')
	if i <= 0 || !strings.HasSuffix(key, "]") {
		return key, nil
	}
	base, rest := key[:i], key[i+1:len(key)-1]
	return base, strings.Split(rest, "][")
}

func assign(m map[string]any, path []string, val string) {
	for i, seg := range path {
		if seg == "" {
			seg = strconv.Itoa(len(m))
		}
		if i == len(path)-1 {
			m[seg] = val
			return
		}
		next, ok := m[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[seg] = next
		}
		m = next
	}
}
