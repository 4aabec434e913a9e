package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedPages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_feed_pages_total",
		Help: "Feed page fetches by result",
	}, []string{"result"})
	PostsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "socialfeed_posts_created_total",
		Help: "Total posts created",
	})
	MediaUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_media_uploads_total",
		Help: "Media uploads by result",
	}, []string{"result"})
	RelationshipMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_relationship_mutations_total",
		Help: "Follow, unfollow and follower removals by result",
	}, []string{"action", "result"})
	OTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_otp_requests_total",
		Help: "One-time code requests by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(FeedPages, PostsCreated, MediaUploads, RelationshipMutations, OTPRequests)
}

// Handler serves the registered metrics
func Handler() http.Handler { return promhttp.Handler() }

// Result maps an error to a result label
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
