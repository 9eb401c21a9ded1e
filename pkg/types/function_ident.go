package types

// FunctionIdent 当前执行函数的稳定标识 (模块 + 函数名)
// 作为所有按位置计数的key的组成部分
type FunctionIdent struct {
	Module string `json:"module"`
	Name   string `json:"name"`
}

// String 返回规范形式 "module::name"
func (f FunctionIdent) String() string {
	return f.Module + "::" + f.Name
}
