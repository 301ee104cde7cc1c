package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forumdigest_notifications_enqueued_total",
		Help: "Total number of notifications appended to user mailboxes.",
	}, []string{"kind"})

	FanoutTasksScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forumdigest_fanout_tasks_scheduled_total",
		Help: "Total number of fan-out tasks handed to the background runner.",
	}, []string{"kind"})

	DigestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forumdigest_digests_sent_total",
		Help: "Total number of digest emails successfully dispatched.",
	})

	MailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forumdigest_mail_failures_total",
		Help: "Total number of digest emails that failed to send.",
	})

	CyclesRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forumdigest_digest_cycles_run_total",
		Help: "Total number of digest cycles executed.",
	})

	CyclesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forumdigest_digest_cycles_skipped_total",
		Help: "Total number of digest cycle ticks skipped because the previous cycle was still running.",
	})
)
