// Package capture turns the host's quiz-completion payloads into
// (question, correctness) observations.
package capture

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRequest = errors.New("invalid completion payload")

type Answer struct {
	QuestionID int64 `json:"question_id"`
	Correct    bool  `json:"correct"`
}

// A Decoder either accepts the whole payload or declines it; it never
// returns a partial answer list.
type Decoder struct {
	Name   string
	Decode func(p map[string]any) ([]Answer, bool)
}

// Decoders are tried in this order.
var Decoders = []Decoder{
	{Name: "questions", Decode: decodeQuestionList},
	{Name: "parallel_arrays", Decode: decodeParallelArrays},
	{Name: "answer_reconstruction", Decode: decodeReconstruction},
	{Name: "single_answer", Decode: decodeSingleAnswer},
}

// Normalize runs the decoders in order and returns the first accepted
// answer list together with the decoder name.
func Normalize(payload map[string]any) ([]Answer, string, error) {
	for _, d := range Decoders {
		if answers, ok := d.Decode(payload); ok {
			return answers, d.Name, nil
		}
	}
	return nil, "", fmt.Errorf("no decoder accepted payload: %w", ErrInvalidRequest)
}

// {"questions":[{"questionId":12,"correctAnswer":true}, ...]}, possibly under "data".
func decodeQuestionList(p map[string]any) ([]Answer, bool) {
	list, ok := lookupList(p, "questions", "data")
	if !ok || len(list) == 0 {
		return nil, false
	}
	out := make([]Answer, 0, len(list))
	for _, item := range list {
		q, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		id, ok := toInt64(q["questionId"])
		if !ok || id <= 0 {
			return nil, false
		}
		out = append(out, Answer{QuestionID: id, Correct: truthy(q["correctAnswer"])})
	}
	return out, true
}

// {"questions_ids":[...],"correctness":[...]} paired by index, possibly under
// "results". Every id needs a flag under its own index.
func decodeParallelArrays(p map[string]any) ([]Answer, bool) {
	src := p
	if _, ok := p["questions_ids"]; !ok {
		if nested, ok := p["results"].(map[string]any); ok {
			src = nested
		}
	}
	ids, order, ok := indexed(src["questions_ids"])
	if !ok || len(order) == 0 {
		return nil, false
	}
	flags, _, ok := indexed(src["correctness"])
	if !ok {
		return nil, false
	}
	out := make([]Answer, 0, len(order))
	for _, i := range order {
		id, ok := toInt64(ids[i])
		if !ok || id <= 0 {
			return nil, false
		}
		flag, ok := flags[i]
		if !ok {
			return nil, false
		}
		out = append(out, Answer{QuestionID: id, Correct: truthy(flag)})
	}
	return out, true
}

// Raw submissions: "ays_questions" maps "ays-question-<id>" to the chosen
// answer, "questions_ids" gives the order and "correct_answers" the expected
// answer under the same index. An unanswered question counts as incorrect.
func decodeReconstruction(p map[string]any) ([]Answer, bool) {
	if _, ok := p["correctness"]; ok {
		return nil, false
	}
	submitted, ok := p["ays_questions"].(map[string]any)
	if !ok {
		return nil, false
	}
	ids, order, ok := indexed(p["questions_ids"])
	if !ok || len(order) == 0 {
		return nil, false
	}
	keys, _, ok := indexed(p["correct_answers"])
	if !ok {
		return nil, false
	}
	out := make([]Answer, 0, len(order))
	for _, i := range order {
		id, ok := toInt64(ids[i])
		if !ok || id <= 0 {
			return nil, false
		}
		expected, ok := keys[i]
		if !ok {
			return nil, false
		}
		given, answered := submitted[fmt.Sprintf("ays-question-%d", id)]
		if !answered {
			given, answered = submitted[fmt.Sprint(id)]
		}
		correct := answered && sameAnswer(given, expected)
		out = append(out, Answer{QuestionID: id, Correct: correct})
	}
	return out, true
}

// The per-question AJAX hook: {"question_id":12,"is_correct":1}.
func decodeSingleAnswer(p map[string]any) ([]Answer, bool) {
	id, ok := toInt64(p["question_id"])
	if !ok || id <= 0 {
		return nil, false
	}
	flag, ok := p["is_correct"]
	if !ok {
		return nil, false
	}
	return []Answer{{QuestionID: id, Correct: truthy(flag)}}, true
}

func sameAnswer(given, expected any) bool {
	g, gok := asList(given)
	e, eok := asList(expected)
	if gok && eok {
		if len(g) != len(e) {
			return false
		}
		want := map[string]int{}
		for _, v := range e {
			want[scalar(v)]++
		}
		for _, v := range g {
			k := scalar(v)
			if want[k] == 0 {
				return false
			}
			want[k]--
		}
		return true
	}
	return scalar(given) == scalar(expected)
}

func scalar(v any) string {
	return strings.TrimSpace(fmt.Sprint(v))
}
