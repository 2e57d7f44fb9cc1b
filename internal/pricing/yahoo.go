package pricing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"paperperps/internal/types"
)

// yahooSymbols maps the internal symbol enum to Yahoo Finance's vocabulary.
var yahooSymbols = map[types.Symbol]string{
	types.SymbolBTCUSD: "BTC-USD",
	types.SymbolXAUUSD: "GC=F",   // gold futures
	types.SymbolSPXUSD: "^GSPC",  // S&P 500 index
	types.SymbolNDXUSD: "^NDX",   // Nasdaq-100
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string           `json:"symbol"`
			RegularMarketPrice *decimal.Decimal `json:"regularMarketPrice"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// YahooClient is a thin quote client for the Yahoo Finance v7 quote API.
type YahooClient struct {
	http *resty.Client
}

func NewYahooClient(baseURL string, timeout time.Duration) *YahooClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("User-Agent", "paperperps/1.0")
	return &YahooClient{http: client}
}

func (c *YahooClient) MarkPrice(ctx context.Context, symbol types.Symbol) (decimal.Decimal, error) {
	upstream, ok := yahooSymbols[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no upstream mapping for %s", ErrPriceUnavailable, symbol)
	}
	var out yahooQuoteResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbols", upstream).
		SetResult(&out).
		Get("/v7/finance/quote")
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: upstream status %d", ErrPriceUnavailable, resp.StatusCode())
	}
	if out.QuoteResponse.Error != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, out.QuoteResponse.Error.Description)
	}
	if len(out.QuoteResponse.Result) == 0 {
		return decimal.Zero, fmt.Errorf("%w: empty quote result for %s", ErrPriceUnavailable, upstream)
	}
	price := out.QuoteResponse.Result[0].RegularMarketPrice
	if price == nil || price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: no market price for %s", ErrPriceUnavailable, upstream)
	}
	return *price, nil
}
