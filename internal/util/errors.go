package util

import "errors"

var (
	ErrEmailRegistered     = errors.New("该邮箱已被注册")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrEvaluationExists    = errors.New("evaluation already submitted for this call")
	ErrSelfEvaluation      = errors.New("cannot evaluate yourself")
	ErrModuleNotAccessible = errors.New("module not accessible without enrollment")
)
