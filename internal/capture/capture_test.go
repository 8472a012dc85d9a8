package capture_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-failedq/internal/capture"
)

func TestQuestionListDecoder(t *testing.T) {
	e, err := capture.ParseEvent([]byte(`{
		"hook": "ays_finish_quiz",
		"user_id": 42,
		"quiz_id": "7",
		"payload": {"data": {"questions": [
			{"questionId": 10, "correctAnswer": true},
			{"questionId": "11", "correctAnswer": "true"},
			{"questionId": 12},
			{"questionId": 13, "correctAnswer": 1},
			{"questionId": 14, "correctAnswer": false}
		]}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "42", e.UserID)
	assert.Equal(t, int64(7), e.QuizID)

	c, err := e.Completion()
	require.NoError(t, err)
	assert.Equal(t, "questions", c.Decoder)
	assert.Equal(t, []capture.Answer{
		{QuestionID: 10, Correct: true},
		{QuestionID: 11, Correct: true},
		{QuestionID: 12, Correct: false},
		{QuestionID: 13, Correct: true},
		{QuestionID: 14, Correct: false},
	}, c.Answers)
}

func TestQuestionListFromForm(t *testing.T) {
	e := capture.FromForm("ays_finish_quiz", "u1", url.Values{
		"quiz_id":                     {"3"},
		"questions[0][questionId]":    {"12"},
		"questions[0][correctAnswer]": {"true"},
		"questions[1][questionId]":    {"13"},
		"questions[1][correctAnswer]": {"1"},
		"questions[2][questionId]":    {"14"},
		"questions[2][correctAnswer]": {"0"},
	})
	c, err := e.Completion()
	require.NoError(t, err)
	assert.Equal(t, "questions", c.Decoder)
	assert.Equal(t, []capture.Answer{
		{QuestionID: 12, Correct: true},
		{QuestionID: 13, Correct: true},
		{QuestionID: 14, Correct: false},
	}, c.Answers)
}

func TestQuestionListDeclinesWhole(t *testing.T) {
	// one bad entry means the decoder declines, nothing else matches
	_, _, err := capture.Normalize(map[string]any{
		"questions": []any{
			map[string]any{"questionId": float64(10), "correctAnswer": false},
			map[string]any{"correctAnswer": false},
		},
	})
	assert.ErrorIs(t, err, capture.ErrInvalidRequest)
}

func TestParallelArrays(t *testing.T) {
	answers, name, err := capture.Normalize(map[string]any{
		"results": map[string]any{
			"questions_ids": []any{"3", "4", "5"},
			"correctness":   []any{"1", "0", true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "parallel_arrays", name)
	assert.Equal(t, []capture.Answer{
		{QuestionID: 3, Correct: true},
		{QuestionID: 4, Correct: false},
		{QuestionID: 5, Correct: true},
	}, answers)
}

func TestParallelArraysShortCorrectnessDeclines(t *testing.T) {
	_, _, err := capture.Normalize(map[string]any{
		"questions_ids": []any{"3", "4"},
		"correctness":   []any{"1"},
	})
	assert.ErrorIs(t, err, capture.ErrInvalidRequest)
}

func TestFormParallelArraysPairByKey(t *testing.T) {
	e := capture.FromForm("ays_finish_quiz", "u1", url.Values{
		"quiz_id":          {"3"},
		"questions_ids[2]": {"11"},
		"questions_ids[5]": {"10"},
		"correctness[5]":   {"0"},
		"correctness[2]":   {"1"},
	})
	c, err := e.Completion()
	require.NoError(t, err)
	assert.Equal(t, []capture.Answer{
		{QuestionID: 11, Correct: true},
		{QuestionID: 10, Correct: false},
	}, c.Answers)
}

func TestFormParallelArraysMissingFlagDeclines(t *testing.T) {
	// question 10 has no flag under its own index
	e := capture.FromForm("ays_finish_quiz", "u1", url.Values{
		"quiz_id":          {"3"},
		"questions_ids[0]": {"10"},
		"questions_ids[1]": {"11"},
		"correctness[1]":   {"1"},
		"correctness[2]":   {"0"},
	})
	_, err := e.Completion()
	assert.ErrorIs(t, err, capture.ErrInvalidRequest)
}

func TestReconstructionFromForm(t *testing.T) {
	form := url.Values{
		"quiz_id":                          {"9"},
		"questions_ids[]":                  {"20", "21", "22"},
		"correct_answers[]":                {"b", "a", "c"},
		"ays_questions[ays-question-20]":   {"b"},
		"ays_questions[ays-question-21]":   {"c"},
	}
	e := capture.FromForm("ays_finish_quiz", "u1", form)
	assert.Equal(t, int64(9), e.QuizID)
	assert.False(t, e.IsFailedQuestionsQuiz)

	c, err := e.Completion()
	require.NoError(t, err)
	assert.Equal(t, "answer_reconstruction", c.Decoder)
	assert.Equal(t, []capture.Answer{
		{QuestionID: 20, Correct: true},
		{QuestionID: 21, Correct: false},
		{QuestionID: 22, Correct: false},
	}, c.Answers)
}

func TestFormParallelArraysAndRemedialFlag(t *testing.T) {
	form := url.Values{
		"quiz_id":                  {"9"},
		"questions_ids[0]":         {"20"},
		"questions_ids[1]":         {"21"},
		"correctness[0]":           {"0"},
		"correctness[1]":           {"1"},
		"is_failed_questions_quiz": {"1"},
	}
	e := capture.FromForm("wp_ajax_ays_finish_quiz", "u1", form)
	assert.True(t, e.IsFailedQuestionsQuiz)

	c, err := e.Completion()
	require.NoError(t, err)
	assert.Equal(t, "parallel_arrays", c.Decoder)
	assert.Equal(t, []capture.Answer{
		{QuestionID: 20, Correct: false},
		{QuestionID: 21, Correct: true},
	}, c.Answers)
}

func TestSingleAnswer(t *testing.T) {
	e := capture.FromForm("quiz_maker_fq_capture_ajax", "u1", url.Values{
		"quiz_id":     {"3"},
		"question_id": {"44"},
		"is_correct":  {"0"},
	})
	c, err := e.Completion()
	require.NoError(t, err)
	assert.Equal(t, "single_answer", c.Decoder)
	assert.Equal(t, []capture.Answer{{QuestionID: 44, Correct: false}}, c.Answers)
}

func TestInvalidEvents(t *testing.T) {
	_, err := capture.ParseEvent([]byte(`not json`))
	assert.ErrorIs(t, err, capture.ErrInvalidRequest)

	e := capture.FromForm("quiz_maker_fq_capture_ajax", "u1", url.Values{
		"quiz_id":     {"0"},
		"question_id": {"44"},
		"is_correct":  {"1"},
	})
	_, err = e.Completion()
	assert.ErrorIs(t, err, capture.ErrInvalidRequest)

	e = capture.FromForm("quiz_maker_fq_capture_ajax", "u1", url.Values{
		"quiz_id":     {"3"},
		"question_id": {"-1"},
		"is_correct":  {"1"},
	})
	_, err = e.Completion()
	assert.ErrorIs(t, err, capture.ErrInvalidRequest)
}
