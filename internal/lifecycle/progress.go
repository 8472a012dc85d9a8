package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-failedq/internal/ledger"
)

var ErrNotInFailedList = errors.New("question is not an active failed question")

type Feedback struct {
	ledger.Progress
	Message string `json:"message"`
}

// AnswerProgress applies one answer to an active record and returns the
// message shown next to the question.
func (u *Updater) AnswerProgress(ctx context.Context, userID string, questionID int64, correct bool) (Feedback, error) {
	if userID == "" {
		return Feedback{}, ErrPermissionDenied
	}
	cfg, err := u.Settings.Get(ctx)
	if err != nil {
		return Feedback{}, fmt.Errorf("load settings: %w", err)
	}

	var p ledger.Progress
	if correct {
		p, err = u.Ledger.RecordCorrectAnswer(ctx, userID, questionID, cfg.ConsecutiveNeeded)
	} else {
		p, err = u.Ledger.RecordIncorrectAnswer(ctx, userID, questionID)
	}
	if err != nil {
		return Feedback{}, err
	}
	if !p.Found {
		return Feedback{}, ErrNotInFailedList
	}

	fb := Feedback{Progress: p}
	switch {
	case !correct:
		fb.Message = "Respuesta incorrecta. Tu contador de respuestas correctas consecutivas se ha reiniciado."
	case p.Mastered:
		fb.Message = fmt.Sprintf("¡Perfecto! Has respondido correctamente esta pregunta %d veces consecutivas. Ya no aparecerá en tus test de preguntas falladas.", cfg.ConsecutiveNeeded)
	default:
		fb.Message = fmt.Sprintf("¡Correcto! Necesitas responder correctamente esta pregunta %d vez(ces) más para dominarla.", p.Remaining)
	}
	return fb, nil
}
