package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"movefuzz/pkg/trace"
	"movefuzz/pkg/types"
)

// ==================== Trace文件格式 ====================

// traceFile 序列化的执行trace
// 由外部VM/回放层导出；每个事件自带该时刻的操作数栈快照
type traceFile struct {
	Events  []traceEventRecord `json:"events"`
	Effects *effectsRecord     `json:"effects,omitempty"`
}

// traceEventRecord 单个事件记录
type traceEventRecord struct {
	Type    string         `json:"type"` // open_frame|instruction|effect|close_frame|external
	Frame   *frameRecord   `json:"frame,omitempty"`
	FrameID uint64         `json:"frame_id,omitempty"`
	PC      uint16         `json:"pc,omitempty"`
	Op      string         `json:"op,omitempty"`
	Imm     int            `json:"imm,omitempty"`
	Effect  string         `json:"effect,omitempty"` // push|pop|execution_error
	Tag     string         `json:"tag,omitempty"`
	Stack   []valueRecord  `json:"stack"`
}

type frameRecord struct {
	ID         uint64   `json:"id"`
	Module     string   `json:"module"`
	Function   string   `json:"function"`
	ParamCount int      `json:"param_count"`
	LocalKinds []string `json:"local_kinds,omitempty"`
	ReturnNum  int      `json:"return_num"`
	IsNative   bool     `json:"is_native,omitempty"`
}

type valueRecord struct {
	Kind  string `json:"kind"`
	Value string `json:"value"` // 十进制或0x十六进制
	Ref   bool   `json:"ref,omitempty"`
}

type effectsRecord struct {
	Status         string               `json:"status"` // success|aborted|error
	AbortCode      types.FlexibleUint64 `json:"abort_code"`
	AllowedSuccess bool                 `json:"allowed_success"`
	Events         []contractEventRecord `json:"events,omitempty"`
}

type contractEventRecord struct {
	Module  string         `json:"module"`
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
}

// loadTraceFile 读取并解析trace JSON
func loadTraceFile(path string) (*traceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	var tf traceFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse trace file: %w", err)
	}
	return &tf, nil
}

// decodeValue 解析一个具体值记录
func decodeValue(r valueRecord) (trace.Value, error) {
	kind := trace.ParseValueKind(r.Kind)
	if kind == trace.KindOpaque {
		v := trace.Value{Kind: trace.KindOpaque}
		if r.Ref {
			v = trace.NewRef(v)
		}
		return v, nil
	}

	n := new(big.Int)
	s := strings.TrimSpace(r.Value)
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		h := s[2:]
		if len(h)%2 == 1 {
			h = "0" + h
		}
		b, err := hexutil.Decode("0x" + h)
		if err != nil {
			return trace.Value{}, fmt.Errorf("invalid value literal %q: %w", r.Value, err)
		}
		n.SetBytes(b)
	case s == "":
	default:
		if _, ok := n.SetString(s, 10); !ok {
			return trace.Value{}, fmt.Errorf("invalid value literal %q", r.Value)
		}
	}

	var v trace.Value
	if kind == trace.KindBool {
		v = trace.NewBool(n.Sign() != 0)
	} else {
		v = trace.NewUintBig(kind, n)
	}
	if r.Ref {
		v = trace.NewRef(v)
	}
	return v, nil
}

// decodeEvent 把一条记录转成引擎事件与状态快照
func decodeEvent(r traceEventRecord) (trace.Event, *trace.State, error) {
	st := trace.NewState()
	for _, vr := range r.Stack {
		v, err := decodeValue(vr)
		if err != nil {
			return nil, nil, err
		}
		st.OperandStack = append(st.OperandStack, v)
	}

	switch r.Type {
	case "open_frame":
		if r.Frame == nil {
			return nil, nil, fmt.Errorf("open_frame event missing frame")
		}
		kinds := make([]trace.ValueKind, 0, len(r.Frame.LocalKinds))
		for _, k := range r.Frame.LocalKinds {
			kinds = append(kinds, trace.ParseValueKind(k))
		}
		return trace.OpenFrameEvent{Frame: &trace.Frame{
			ID:         r.Frame.ID,
			Function:   types.FunctionIdent{Module: r.Frame.Module, Name: r.Frame.Function},
			ParamCount: r.Frame.ParamCount,
			LocalKinds: kinds,
			ReturnNum:  r.Frame.ReturnNum,
			IsNative:   r.Frame.IsNative,
		}}, st, nil

	case "instruction":
		return trace.InstructionEvent{PC: r.PC, Op: trace.ParseOpcode(r.Op), Imm: r.Imm}, st, nil

	case "effect":
		kind := trace.EffectPush
		switch r.Effect {
		case "pop":
			kind = trace.EffectPop
		case "execution_error":
			kind = trace.EffectExecutionError
		}
		return trace.EffectEvent{Kind: kind}, st, nil

	case "close_frame":
		return trace.CloseFrameEvent{FrameID: r.FrameID}, st, nil

	case "external":
		return trace.ExternalEvent{Tag: r.Tag}, st, nil
	}
	return nil, nil, fmt.Errorf("unknown event type %q", r.Type)
}

// decodeEffects 转成引擎的最终执行效果
func decodeEffects(r *effectsRecord) *types.ExecutionEffects {
	if r == nil {
		return nil
	}
	status := types.StatusSuccess
	switch r.Status {
	case "aborted":
		status = types.StatusAborted
	case "error":
		status = types.StatusError
	}
	effects := &types.ExecutionEffects{
		Status:         status,
		AbortCode:      r.AbortCode,
		AllowedSuccess: r.AllowedSuccess,
	}
	for _, ev := range r.Events {
		effects.Events = append(effects.Events, types.ContractEvent{
			Module:  ev.Module,
			Name:    ev.Name,
			Payload: ev.Payload,
		})
	}
	return effects
}
