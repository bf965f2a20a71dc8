package svc

import "errors"

// ErrNoSymbols 错误：没有配置任何品种
var ErrNoSymbols = errors.New("no symbols configured")

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")

// ErrUnknownProvider 错误：配置中的 provider 没有注册
var ErrUnknownProvider = errors.New("unknown provider")
