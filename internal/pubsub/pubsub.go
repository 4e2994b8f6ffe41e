// Package pubsub publishes telemetry to an MQTT broker from a single actor.
package pubsub

import (
	"errors"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/dumacp/go-logs/pkg/logs"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	//DefaultBroker is the local broker the daemon publishes to.
	DefaultBroker = "tcp://127.0.0.1:1883"
	clientID      = "downlink"

	//TopicTelemetry is the root of every published topic.
	TopicTelemetry = "telemetry"
	TopicRate      = TopicTelemetry + "/rate"
)

const defaultConnectTimeout = 10 * time.Second

type publishMSG struct {
	topic string
	msg   []byte
}
type ping struct{}
type pong struct{}

//Gateway sends publications to the pubsub actor.
type Gateway struct {
	rootctx *actor.RootContext
	pid     *actor.PID
}

type pubsubActor struct {
	broker         string
	connectTimeout time.Duration
	client         mqtt.Client
}

type Option func(*pubsubActor)

//WithConnectTimeout bounds the wait for the first connection. The client
//keeps retrying in the background after it.
func WithConnectTimeout(d time.Duration) Option {
	return func(ps *pubsubActor) {
		if d > 0 {
			ps.connectTimeout = d
		}
	}
}

//Spawn starts the pubsub actor under root and waits until it is ready.
func Spawn(root *actor.RootContext, broker string, opts ...Option) (*Gateway, error) {
	if root == nil {
		return nil, errors.New("nil root context")
	}
	if broker == "" {
		broker = DefaultBroker
	}
	ps := &pubsubActor{
		broker:         broker,
		connectTimeout: defaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(ps)
	}
	props := actor.PropsFromFunc(ps.Receive)
	pid, err := root.SpawnNamed(props, "pubsub-actor")
	if err != nil {
		return nil, err
	}
	res, err := root.RequestFuture(pid, &ping{}, ps.connectTimeout+time.Second).Result()
	if err != nil {
		return nil, err
	}
	if _, ok := res.(*pong); !ok {
		return nil, errors.New("pubsub actor not ready")
	}
	return &Gateway{rootctx: root, pid: pid}, nil
}

//Publish queues msg for topic. Messages published while the broker is
//unreachable are dropped.
func (g *Gateway) Publish(topic string, msg []byte) {
	if g == nil {
		return
	}
	g.rootctx.Send(g.pid, &publishMSG{topic: topic, msg: msg})
}

//Stop disconnects from the broker and stops the actor.
func (g *Gateway) Stop() {
	if g == nil {
		return
	}
	g.rootctx.PoisonFuture(g.pid).Wait()
}

//Receive function
func (ps *pubsubActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		logs.LogInfo.Printf("Starting, actor, pid: %v\n", ctx.Self())
		ps.client = client(ps.broker)
		if err := connect(ps.client, ps.connectTimeout); err != nil {
			logs.LogWarn.Printf("broker %s: %s, retrying in background", ps.broker, err)
		}
	case *ping:
		if ctx.Sender() != nil {
			ctx.Respond(&pong{})
		}
	case *publishMSG:
		if !ps.client.IsConnectionOpen() {
			logs.LogBuild.Printf("broker not connected, drop message in topic %q", msg.topic)
			return
		}
		tk := ps.client.Publish(msg.topic, 0, false, msg.msg)
		if !tk.WaitTimeout(3 * time.Second) {
			logs.LogError.Printf("timeout error with message in topic %q", msg.topic)
		} else if tk.Error() != nil {
			logs.LogError.Printf("end error: %s, with message in topic %q", tk.Error(), msg.topic)
		}
	case *actor.Stopping:
		if ps.client != nil && ps.client.IsConnected() {
			ps.client.Disconnect(600)
		}
		logs.LogInfo.Println("Stopping, actor is about to shut down")
	case *actor.Restarting:
		logs.LogError.Println("Restarting, actor is about to restart")
	}
}

func client(broker string) mqtt.Client {
	opt := mqtt.NewClientOptions().AddBroker(broker)
	opt.SetAutoReconnect(true)
	opt.SetClientID(clientID + "-" + uuid.NewString())
	opt.SetKeepAlive(30 * time.Second)
	opt.SetConnectRetry(true)
	opt.SetConnectRetryInterval(10 * time.Second)
	return mqtt.NewClient(opt)
}

func connect(c mqtt.Client, timeout time.Duration) error {
	tk := c.Connect()
	if !tk.WaitTimeout(timeout) {
		return errors.New("connect wait timeout")
	}
	return tk.Error()
}
