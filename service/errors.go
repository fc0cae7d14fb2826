package service

import "errors"

// Error taxonomy surfaced to the API layer. Handlers map these to HTTP
// statuses with errors.Is.
var (
	// ErrValidation 输入不合法，在任何外部调用之前拒绝
	ErrValidation = errors.New("validation failed")
	// ErrNotFound 目标记录不存在或不属于当前用户
	ErrNotFound = errors.New("not found")
	// ErrStorage 文档存储不可达或拒绝操作，不做自动重试
	ErrStorage = errors.New("storage failure")
	// ErrGeneration 生成服务失败且无法降级
	ErrGeneration = errors.New("generation failure")
	// ErrUserExists 注册冲突
	ErrUserExists = errors.New("user already exists")
	// ErrGenerationInFlight 同一用户的趋势生成已在进行中
	ErrGenerationInFlight = errors.New("generation already in flight")
)
