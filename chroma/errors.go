package chroma

import "fmt"

// NotFoundError 输入图片或目录不存在 / 无法读取
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("input not found (%s): %v", e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// DecodeError 输入字节无法解码为支持的图片格式
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image (%s): %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError 输出 PNG 写入失败
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode png (%s): %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// InvalidParameterError 参数越界或格式错误
type InvalidParameterError struct {
	Name   string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Name, e.Value, e.Reason)
}
