package plugin

import (
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"
)

// Argument and reply types carried over net/rpc. gob needs exported fields,
// so calls without a payload still use Ack.
type (
	Ack            struct{ Done bool }
	PowerArgs      struct{ On bool }
	BlockSizeArgs  struct{ N int }
	RateArgs       struct{ Rate float32 }
	PrecisionArgs  struct{ Precision Precision }
	EventsArgs     struct{ Events []Event }
	ChunkArgs      struct {
		IsPreset bool
		Data     []byte
	}
	ChunkReply     struct{ Data []byte }
	ParameterArgs  struct {
		Index int
		Value float32
	}
	ParameterReply struct{ Value float32 }
	ProgramArgs    struct{ Index int }
	NameReply      struct{ Name string }
	InfoReply      struct{ Info Info }
	ProcessArgs    struct {
		In      [][]float32
		Outputs int
		Frames  int
	}
	ProcessReply struct{ Out [][]float32 }
)

// ModulePlugin is the go-plugin binding for Module.
type ModulePlugin struct {
	Impl Module
}

var _ goplugin.Plugin = (*ModulePlugin)(nil)

func (p *ModulePlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (p *ModulePlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// RPCClient is the host-side Module that forwards every call to the module
// process.
type RPCClient struct {
	client *rpc.Client
}

var _ Module = (*RPCClient)(nil)

func (c *RPCClient) call(method string, args, reply interface{}) error {
	return c.client.Call("Plugin."+method, args, reply)
}

func (c *RPCClient) Open() error            { return c.call("Open", new(interface{}), &Ack{}) }
func (c *RPCClient) Close() error           { return c.call("Close", new(interface{}), &Ack{}) }
func (c *RPCClient) StartProcessing() error { return c.call("StartProcessing", new(interface{}), &Ack{}) }
func (c *RPCClient) StopProcessing() error  { return c.call("StopProcessing", new(interface{}), &Ack{}) }

func (c *RPCClient) SetPowerState(on bool) error {
	return c.call("SetPowerState", &PowerArgs{On: on}, &Ack{})
}

func (c *RPCClient) SetBlockSize(n int) error {
	return c.call("SetBlockSize", &BlockSizeArgs{N: n}, &Ack{})
}

func (c *RPCClient) SetSampleRate(rate float32) error {
	return c.call("SetSampleRate", &RateArgs{Rate: rate}, &Ack{})
}

func (c *RPCClient) SetProcessPrecision(p Precision) error {
	return c.call("SetProcessPrecision", &PrecisionArgs{Precision: p}, &Ack{})
}

func (c *RPCClient) ProcessReplacing(in, out [][]float32) error {
	frames := 0
	if len(out) > 0 {
		frames = len(out[0])
	}
	var reply ProcessReply
	if err := c.call("ProcessReplacing", &ProcessArgs{In: in, Outputs: len(out), Frames: frames}, &reply); err != nil {
		return err
	}
	for ch := range out {
		if ch < len(reply.Out) {
			n := copy(out[ch], reply.Out[ch])
			clear(out[ch][n:])
		} else {
			clear(out[ch])
		}
	}
	return nil
}

func (c *RPCClient) ProcessEvents(events []Event) error {
	return c.call("ProcessEvents", &EventsArgs{Events: events}, &Ack{})
}

func (c *RPCClient) GetChunk(isPreset bool) ([]byte, error) {
	var reply ChunkReply
	err := c.call("GetChunk", &ChunkArgs{IsPreset: isPreset}, &reply)
	return reply.Data, err
}

func (c *RPCClient) SetChunk(data []byte, isPreset bool) error {
	return c.call("SetChunk", &ChunkArgs{IsPreset: isPreset, Data: data}, &Ack{})
}

func (c *RPCClient) BeginProgramChange() error {
	return c.call("BeginProgramChange", new(interface{}), &Ack{})
}

func (c *RPCClient) EndProgramChange() error {
	return c.call("EndProgramChange", new(interface{}), &Ack{})
}

func (c *RPCClient) GetParameter(index int) (float32, error) {
	var reply ParameterReply
	err := c.call("GetParameter", &ParameterArgs{Index: index}, &reply)
	return reply.Value, err
}

func (c *RPCClient) SetParameter(index int, value float32) error {
	return c.call("SetParameter", &ParameterArgs{Index: index, Value: value}, &Ack{})
}

func (c *RPCClient) ProgramName() (string, error) {
	var reply NameReply
	err := c.call("ProgramName", new(interface{}), &reply)
	return reply.Name, err
}

func (c *RPCClient) SetProgram(index int) error {
	return c.call("SetProgram", &ProgramArgs{Index: index}, &Ack{})
}

func (c *RPCClient) Info() (Info, error) {
	var reply InfoReply
	err := c.call("Info", new(interface{}), &reply)
	return reply.Info, err
}

// RPCServer runs inside the module process and dispatches to Impl.
type RPCServer struct {
	Impl Module
}

func (s *RPCServer) Open(_ interface{}, resp *Ack) error {
	resp.Done = true
	return s.Impl.Open()
}

func (s *RPCServer) Close(_ interface{}, resp *Ack) error {
	resp.Done = true
	return s.Impl.Close()
}

func (s *RPCServer) StartProcessing(_ interface{}, resp *Ack) error {
	resp.Done = true
	return s.Impl.StartProcessing()
}

func (s *RPCServer) StopProcessing(_ interface{}, resp *Ack) error {
	resp.Done = true
	return s.Impl.StopProcessing()
}

func (s *RPCServer) SetPowerState(args *PowerArgs, resp *Ack) error {
	resp.Done = true
	return s.Impl.SetPowerState(args.On)
}

func (s *RPCServer) SetBlockSize(args *BlockSizeArgs, resp *Ack) error {
	resp.Done = true
	return s.Impl.SetBlockSize(args.N)
}

func (s *RPCServer) SetSampleRate(args *RateArgs, resp *Ack) error {
	resp.Done = true
	return s.Impl.SetSampleRate(args.Rate)
}

func (s *RPCServer) SetProcessPrecision(args *PrecisionArgs, resp *Ack) error {
	resp.Done = true
	return s.Impl.SetProcessPrecision(args.Precision)
}

func (s *RPCServer) ProcessReplacing(args *ProcessArgs, resp *ProcessReply) error {
	out := make([][]float32, args.Outputs)
	for ch := range out {
		out[ch] = make([]float32, args.Frames)
	}
	in := args.In
	for ch := range in {
		// gob drops empty slices to nil
		if in[ch] == nil {
			in[ch] = make([]float32, args.Frames)
		}
	}
	if err := s.Impl.ProcessReplacing(in, out); err != nil {
		return err
	}
	resp.Out = out
	return nil
}

func (s *RPCServer) ProcessEvents(args *EventsArgs, resp *Ack) error {
	resp.Done = true
	return s.Impl.ProcessEvents(args.Events)
}

func (s *RPCServer) GetChunk(args *ChunkArgs, resp *ChunkReply) error {
	data, err := s.Impl.GetChunk(args.IsPreset)
	resp.Data = data
	return err
}

func (s *RPCServer) SetChunk(args *ChunkArgs, resp *Ack) error {
	resp.Done = true
	return s.Impl.SetChunk(args.Data, args.IsPreset)
}

func (s *RPCServer) BeginProgramChange(_ interface{}, resp *Ack) error {
	resp.Done = true
	return s.Impl.BeginProgramChange()
}

func (s *RPCServer) EndProgramChange(_ interface{}, resp *Ack) error {
	resp.Done = true
	return s.Impl.EndProgramChange()
}

func (s *RPCServer) GetParameter(args *ParameterArgs, resp *ParameterReply) error {
	v, err := s.Impl.GetParameter(args.Index)
	resp.Value = v
	return err
}

func (s *RPCServer) SetParameter(args *ParameterArgs, resp *Ack) error {
	resp.Done = true
	return s.Impl.SetParameter(args.Index, args.Value)
}

func (s *RPCServer) ProgramName(_ interface{}, resp *NameReply) error {
	name, err := s.Impl.ProgramName()
	resp.Name = name
	return err
}

func (s *RPCServer) SetProgram(args *ProgramArgs, resp *Ack) error {
	resp.Done = true
	return s.Impl.SetProgram(args.Index)
}

func (s *RPCServer) Info(_ interface{}, resp *InfoReply) error {
	info, err := s.Impl.Info()
	resp.Info = info
	return err
}
