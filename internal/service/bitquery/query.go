package bitquery

import "github.com/Kshitij0O7/bitquery-x402/internal/domain/models"

// latestPriceInterval is the finest interval the provider aggregates.
const latestPriceInterval = 1

const latestPriceQuery = `query LatestPrice($token: String!, $interval: Int) {
  Trading {
    Tokens(
      where: {Token: {Address: {is: $token}}, Interval: {Time: {Duration: {eq: $interval}}}}
      orderBy: {descending: Block_Time}
      limit: {count: 1}
    ) {
      Price {
        Ohlc {
          Close
        }
      }
    }
  }
}`

const ohlcQuery = `query OHLC($token: String!, $interval: Int) {
  Trading {
    Tokens(
      where: {Token: {Address: {is: $token}}, Interval: {Time: {Duration: {eq: $interval}}}}
      orderBy: {descending: Block_Time}
    ) {
      Interval {
        Time {
          Start
          End
        }
      }
      Price {
        Ohlc {
          Close
        }
      }
    }
  }
}`

const averagePriceQuery = `query AveragePrice($token: String!, $interval: Int) {
  Trading {
    Tokens(
      where: {Token: {Address: {is: $token}}, Interval: {Time: {Duration: {eq: $interval}}}}
      orderBy: {descending: Interval_Time_Start}
    ) {
      Interval {
        Time {
          Start
          End
        }
      }
      Price {
        Average {
          Mean
          SimpleMoving
          WeightedSimpleMoving
          ExponentialMoving
        }
      }
    }
  }
}`

const volumeQuery = `query Volume($token: String!, $interval: Int) {
  Trading {
    Tokens(
      where: {Token: {Address: {is: $token}}, Interval: {Time: {Duration: {eq: $interval}}}}
      orderBy: {descending: Interval_Time_Start}
    ) {
      Interval {
        Time {
          Start
          End
        }
      }
      Volume {
        Base
        Quote
        Usd
      }
    }
  }
}`

var queries = map[models.Report]string{
	models.ReportLatestPrice:  latestPriceQuery,
	models.ReportOHLC:         ohlcQuery,
	models.ReportAveragePrice: averagePriceQuery,
	models.ReportVolume:       volumeQuery,
}

// Query returns the GraphQL document for report.
func Query(report models.Report) (string, bool) {
	q, ok := queries[report]
	return q, ok
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func variables(token string, interval any) map[string]any {
	return map[string]any{
		"token":    token,
		"interval": interval,
	}
}
