package controller

import (
	"fmt"

	"github.com/keylight/keylightd/internal/ec"
	"github.com/prometheus/client_golang/prometheus"
)

var _ prometheus.Collector = &Metrics{}

// Metrics contains the prometheus metrics for the controller and the EC
// command channel.
type Metrics struct {
	commands   *prometheus.CounterVec
	fades      *prometheus.CounterVec
	active     prometheus.Gauge
	brightness prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keylightd_ec_commands_total",
				Help: "Number of commands sent to the embedded controller",
			},
			[]string{"command", "result"},
		),
		fades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keylightd_fades_total",
				Help: "Number of backlight fades",
			},
			[]string{"direction"},
		),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keylightd_active",
			Help: "Whether the controller considers the user active",
		}),
		brightness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keylightd_brightness_percent",
			Help: "Last keyboard backlight brightness written to the EC",
		}),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.commands.Describe(ch)
	m.fades.Describe(ch)
	m.active.Describe(ch)
	m.brightness.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.commands.Collect(ch)
	m.fades.Collect(ch)
	m.active.Collect(ch)
	m.brightness.Collect(ch)
}

// Commander wraps next so that every EC command exchange is counted by
// command and result.
func (m *Metrics) Commander(next ec.Commander) ec.Commander {
	return &instrumentedCommander{next: next, metrics: m}
}

type instrumentedCommander struct {
	next    ec.Commander
	metrics *Metrics
}

func (i *instrumentedCommander) Command(req ec.Request, rsp ec.Response) error {
	err := i.next.Command(req, rsp)

	opcode, _ := req.Command()
	i.metrics.commands.WithLabelValues(fmt.Sprintf("0x%04x", opcode), result(err)).Inc()

	if set, ok := req.(ec.SetKeyboardBacklightRequest); ok && err == nil {
		i.metrics.brightness.Set(float64(set.Percent))
	}
	return err
}

func result(err error) string {
	switch err.(type) {
	case nil:
		return "success"
	case *ec.TransportError:
		return "transport"
	case *ec.StatusError:
		return "status"
	case *ec.ProtocolError:
		return "protocol"
	default:
		return "error"
	}
}
