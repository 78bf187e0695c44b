package cbr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Dan9191/wallet-service/internal/config"
	"github.com/Dan9191/wallet-service/internal/states"
	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CBRClient fetches daily currency rates from the Central Bank of Russia
type CBRClient struct {
	url        string
	currencies []string
	client     *http.Client
	log        *logrus.Logger
	now        func() time.Time
}

// NewCBRClient initializes a new CBR client
func NewCBRClient(cfg *config.Config, log *logrus.Logger) *CBRClient {
	return &CBRClient{
		url:        cfg.CBRURL,
		currencies: cfg.CBRCurrencies,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
		now: time.Now,
	}
}

// EntityID is the tracker entity a currency rate is published under
func EntityID(code string) string {
	return fmt.Sprintf("sensor.cbr_%s_rub", strings.ToLower(code))
}

// buildSOAPRequest creates a SOAP request for the rates on a date
func (c *CBRClient) buildSOAPRequest(on time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
		<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
			<soap12:Body>
				<GetCursOnDate xmlns="http://web.cbr.ru/">
					<On_date>%s</On_date>
				</GetCursOnDate>
			</soap12:Body>
		</soap12:Envelope>`, on.Format("2006-01-02"))
}

// sendRequest sends SOAP request to CBR
func (c *CBRClient) sendRequest(ctx context.Context, soapRequest string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(soapRequest))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://web.cbr.ru/GetCursOnDate")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugf("CBR XML response: %s", string(body))
	return body, nil
}

// parseXMLResponse extracts per unit rates keyed by ISO currency code
func (c *CBRClient) parseXMLResponse(rawBody []byte) (map[string]decimal.Decimal, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	rows := doc.FindElements("//diffgram/ValuteData/ValuteCursOnDate")
	if len(rows) == 0 {
		return nil, fmt.Errorf("no currency data found in XML")
	}

	rates := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		code := row.FindElement("./VchCode")
		curs := row.FindElement("./Vcurs")
		nom := row.FindElement("./Vnom")
		if code == nil || curs == nil || nom == nil {
			return nil, fmt.Errorf("incomplete currency row in XML")
		}

		value, err := decimal.NewFromString(strings.TrimSpace(curs.Text()))
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate of %s: %w", code.Text(), err)
		}
		units, err := decimal.NewFromString(strings.TrimSpace(nom.Text()))
		if err != nil || units.IsZero() {
			return nil, fmt.Errorf("invalid nominal of %s: %q", code.Text(), nom.Text())
		}
		rates[strings.ToUpper(strings.TrimSpace(code.Text()))] = value.Div(units)
	}
	return rates, nil
}

// GetRates retrieves today's rates in RUB per unit of currency
func (c *CBRClient) GetRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	body, err := c.sendRequest(ctx, c.buildSOAPRequest(c.now()))
	if err != nil {
		return nil, err
	}
	return c.parseXMLResponse(body)
}

// Publish fetches the configured currencies and publishes them as tracker
// entities. On failure the trackers are marked unavailable.
func (c *CBRClient) Publish(ctx context.Context, table *states.Table) error {
	rates, err := c.GetRates(ctx)
	if err != nil {
		for _, code := range c.currencies {
			table.Set(EntityID(code), states.Unavailable, nil)
		}
		return fmt.Errorf("failed to refresh CBR rates: %w", err)
	}

	for _, code := range c.currencies {
		rate, ok := rates[code]
		if !ok {
			c.log.Warnf("CBR has no rate for %s", code)
			table.Set(EntityID(code), states.Unavailable, nil)
			continue
		}
		table.Set(EntityID(code), rate.String(), map[string]interface{}{
			"unit_of_measurement": "RUB",
			"source":              "cbr",
		})
	}
	c.log.Infof("Refreshed %d CBR rates", len(c.currencies))
	return nil
}
