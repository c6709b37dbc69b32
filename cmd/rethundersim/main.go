// Command rethundersim wires one end-to-end scenario (spec.md §8
// scenario 1: a single master-slave exchange) and prints the payload
// the master receives back. It takes no flags and reads no argv — see
// DESIGN.md for why this stays a demo, not a CLI harness.
package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/kprusa/rethundersim/internal/config"
	"github.com/kprusa/rethundersim/internal/master"
	"github.com/kprusa/rethundersim/internal/metrics"
	"github.com/kprusa/rethundersim/internal/netmedium"
	"github.com/kprusa/rethundersim/internal/simkernel"
	"github.com/kprusa/rethundersim/internal/slave"
)

func main() {
	env := simkernel.NewEnvironment()

	const propagationDelay = 20
	const transmissionSpeed = 0.5

	bus := netmedium.NewBus(env, propagationDelay)

	masterNode := netmedium.NewNetworkNode(env, transmissionSpeed)
	slaveNode := netmedium.NewNetworkNode(env, transmissionSpeed)
	bus.Connect(masterNode)
	bus.Connect(slaveNode)

	reg := metrics.NewCollector(prometheus.NewRegistry())

	var received []byte
	m := master.NewMaster(masterNode, func(mm *master.Master, payload []byte) {
		received = payload
		logrus.WithField("payload", string(payload)).Info("master received response")
	}, reg, config.Default())

	s := slave.NewSlave(slaveNode, 1, func(sl *slave.Slave, payload []byte) []byte {
		logrus.WithField("payload", string(payload)).Info("slave received request")
		return []byte("Ok")
	})

	if err := m.InitFromStaticAddrGraph(map[int][]int{0: {1}, 1: {0}}, master.DefaultInitOptions()); err != nil {
		logrus.WithError(err).Fatal("failed to initialize master")
	}

	env.Spawn(m.Run)
	env.Spawn(s.Run)

	m.SendMessage([]byte("Hi"), 1)

	env.Run()

	fmt.Printf("master received: %s\n", received)
}
