package device

//MsgSubscribeProcess registers the sender to receive every line as MsgLine.
type MsgSubscribeProcess struct{}

//MsgLine carries one reassembled line.
type MsgLine struct {
	Line string
}

//MsgSourceExhausted is sent to the parent when the source reaches its end.
type MsgSourceExhausted struct {
	Err error
}

type msgFatal struct {
	err error
}

type msgExhausted struct {
	err error
}
