package service

import (
	"lingopeer_backend/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fillBlankExercise(index int, blanks string) model.Exercise {
	return model.Exercise{
		Index:  index,
		Kind:   model.FillBlank,
		Blanks: blanks,
	}
}

func liveCallExercise(index int) model.Exercise {
	return model.Exercise{
		Index: index,
		Kind:  model.LiveCall,
	}
}

func TestComputeActiveIndex_EmptyModule(t *testing.T) {
	assert.Equal(t, 0, ComputeActiveIndex(nil, nil))
	assert.False(t, IsModuleComplete(nil, nil))
}

func TestComputeActiveIndex_NoAnswers(t *testing.T) {
	exercises := []model.Exercise{
		fillBlankExercise(0, `[["a"]]`),
		liveCallExercise(1),
	}
	assert.Equal(t, 0, ComputeActiveIndex(exercises, []*AnswerSnapshot{nil, nil}))
}

func TestComputeActiveIndex_AdvancesPastSatisfied(t *testing.T) {
	exercises := []model.Exercise{
		fillBlankExercise(0, `[["a"],["b"]]`),
		fillBlankExercise(1, `[["c"]]`),
		liveCallExercise(2),
	}
	answers := []*AnswerSnapshot{
		{Answers: []string{"a", "b"}, IsCorrect: true, IsSubmitted: true},
		nil,
		nil,
	}
	assert.Equal(t, 1, ComputeActiveIndex(exercises, answers))
}

// 填空数量对不上的槽位不算满足，下标停在原地
func TestComputeActiveIndex_BlankCountMismatch(t *testing.T) {
	exercises := []model.Exercise{fillBlankExercise(0, `[["a"],["b"]]`)}
	answers := []*AnswerSnapshot{{Answers: []string{"a"}}}
	assert.Equal(t, 0, ComputeActiveIndex(exercises, answers))
}

// 已提交但答错的填空必须重做
func TestComputeActiveIndex_SubmittedWrongAnswerNotSatisfied(t *testing.T) {
	exercises := []model.Exercise{
		fillBlankExercise(0, `[["a"]]`),
		fillBlankExercise(1, `[["b"]]`),
	}
	answers := []*AnswerSnapshot{
		{Answers: []string{"x"}, IsCorrect: false, IsSubmitted: true},
		nil,
	}
	assert.Equal(t, 0, ComputeActiveIndex(exercises, answers))
}

// 未提交但填满的草稿允许前进
func TestComputeActiveIndex_DraftFilledBlanksSatisfied(t *testing.T) {
	exercises := []model.Exercise{
		fillBlankExercise(0, `[["a"]]`),
		liveCallExercise(1),
	}
	answers := []*AnswerSnapshot{
		{Answers: []string{"maybe"}, IsCorrect: false, IsSubmitted: false},
		nil,
	}
	assert.Equal(t, 1, ComputeActiveIndex(exercises, answers))
}

func TestComputeActiveIndex_AllSatisfiedStaysOnLast(t *testing.T) {
	exercises := []model.Exercise{
		fillBlankExercise(0, `[["a"]]`),
		liveCallExercise(1),
	}
	answers := []*AnswerSnapshot{
		{Answers: []string{"a"}, IsCorrect: true, IsSubmitted: true},
		{IsCorrect: true, IsSubmitted: true},
	}
	assert.Equal(t, 1, ComputeActiveIndex(exercises, answers))
}

func TestComputeActiveIndex_LiveCallSubmittedWithoutApproval(t *testing.T) {
	exercises := []model.Exercise{liveCallExercise(0), fillBlankExercise(1, `[["a"]]`)}
	answers := []*AnswerSnapshot{
		{IsSubmitted: true, IsCorrect: false},
		nil,
	}
	// 完成通话即可前进，即使互评还没通过
	assert.Equal(t, 1, ComputeActiveIndex(exercises, answers))
	assert.False(t, IsModuleComplete(exercises, answers))
}

func TestIsModuleComplete_RequiresEveryExerciseCorrect(t *testing.T) {
	exercises := []model.Exercise{
		fillBlankExercise(0, `[["a"]]`),
		liveCallExercise(1),
	}

	answers := []*AnswerSnapshot{
		{Answers: []string{"a"}, IsCorrect: true, IsSubmitted: true},
		{IsSubmitted: true, IsCorrect: false},
	}
	assert.False(t, IsModuleComplete(exercises, answers))

	answers[1].IsCorrect = true
	assert.True(t, IsModuleComplete(exercises, answers))
}

func TestGradeFillBlank(t *testing.T) {
	exercise := fillBlankExercise(0, `[["a","an"],["croissant"]]`)

	assert.True(t, gradeFillBlank(&exercise, []string{"a", "croissant"}))
	assert.True(t, gradeFillBlank(&exercise, []string{" An ", "CROISSANT"}))
	assert.False(t, gradeFillBlank(&exercise, []string{"the", "croissant"}))
	assert.False(t, gradeFillBlank(&exercise, []string{"a"}))
	assert.False(t, gradeFillBlank(&exercise, nil))
}

func TestGradeFillBlank_NoBlanksNeverCorrect(t *testing.T) {
	exercise := fillBlankExercise(0, "")
	assert.False(t, gradeFillBlank(&exercise, []string{"anything"}))
}
