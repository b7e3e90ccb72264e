package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daybridge_chat_messages_total",
		Help: "Number of chat turns handled.",
	})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybridge_actions_total",
		Help: "Action transitions by outcome.",
	}, []string{"outcome"})

	proposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daybridge_action_proposals_total",
		Help: "Actions proposed by the agent, by type.",
	}, []string{"type"})
)
