// Package parser decodes the Banka Slovenije reference rate feed.
//
// The feed is a flat list of dated blocks:
//
//	<DtecBS>
//	  <tecajnica datum="2007-01-01">
//	    <tecaj oznaka="USD" sifra="840">1.3170</tecaj>
//	  </tecajnica>
//	</DtecBS>
package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
)

const blockElement = "tecajnica"

type rateBlock struct {
	Date  string `xml:"datum,attr"`
	Rates []struct {
		Code    string `xml:"oznaka,attr"`
		Numeric string `xml:"sifra,attr"`
		Value   string `xml:",chardata"`
	} `xml:"tecaj"`
}

// BSIXMLParser implements service.FeedParser for the dtecbs XML format
type BSIXMLParser struct {
	logger logger.Logger
}

// NewBSIXMLParser creates a new parser
func NewBSIXMLParser(log logger.Logger) *BSIXMLParser {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &BSIXMLParser{logger: log.WithField("component", "feed_parser")}
}

// Parse decodes every dated block in raw. Blocks with a bad date and rates
// with a bad code or value are skipped with a warning. A document that breaks
// off after at least one good block is kept as far as it was read. Only a feed
// yielding no usable block at all is an error.
func (p *BSIXMLParser) Parse(raw []byte) (entity.Feed, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	decoder.CharsetReader = passthroughCharset

	var (
		entries []entity.FeedEntry
		skipped int
		seen    = make(map[string]int)
	)

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(entries) == 0 {
				return entity.Feed{}, &entity.FeedFormatError{Reason: "malformed XML", Err: err}
			}
			p.logger.Warn("Feed truncated, keeping blocks read so far", map[string]interface{}{
				"error":  err.Error(),
				"blocks": len(entries),
				"offset": decoder.InputOffset(),
			})
			break
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != blockElement {
			continue
		}

		var block rateBlock
		if err := decoder.DecodeElement(&block, &start); err != nil {
			if len(entries) == 0 {
				return entity.Feed{}, &entity.FeedFormatError{Reason: "malformed XML", Err: err}
			}
			p.logger.Warn("Feed truncated inside a block, keeping blocks read so far", map[string]interface{}{
				"error":  err.Error(),
				"blocks": len(entries),
			})
			break
		}

		entry, ok := p.convert(block)
		if !ok {
			skipped++
			continue
		}

		key := entity.FormatDay(entry.Date)
		if n := seen[key]; n > 0 {
			p.logger.Warn("Duplicate date in feed, later rates win", map[string]interface{}{"date": key})
		}
		seen[key]++
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		reason := "no dated rate blocks found"
		if skipped > 0 {
			reason = fmt.Sprintf("all %d dated blocks were invalid", skipped)
		}
		return entity.Feed{}, &entity.FeedFormatError{Reason: reason}
	}

	feed := entity.NewFeed(entries)
	if feed.Currencies().Len() == 0 {
		return entity.Feed{}, &entity.FeedFormatError{
			Reason: fmt.Sprintf("%d dated blocks held no valid rate", feed.Len()),
		}
	}

	p.logger.Debug("Feed parsed", map[string]interface{}{
		"days":       feed.Len(),
		"skipped":    skipped,
		"currencies": feed.Currencies().Len(),
	})

	return feed, nil
}

func (p *BSIXMLParser) convert(block rateBlock) (entity.FeedEntry, bool) {
	date, err := time.Parse(entity.DayLayout, strings.TrimSpace(block.Date))
	if err != nil {
		p.logger.Warn("Skipping block with invalid date", map[string]interface{}{
			"datum": block.Date,
		})
		return entity.FeedEntry{}, false
	}

	entry := entity.NewFeedEntry(date)
	for _, r := range block.Rates {
		code, err := entity.NormalizeCurrency(r.Code)
		if err != nil {
			p.logger.Warn("Skipping rate with invalid currency code", map[string]interface{}{
				"date":   entity.FormatDay(date),
				"oznaka": r.Code,
				"sifra":  r.Numeric,
			})
			continue
		}

		rate, err := ParseRate(r.Value)
		if err != nil {
			p.logger.Warn("Skipping unparseable rate", map[string]interface{}{
				"date":     entity.FormatDay(date),
				"currency": code,
				"value":    r.Value,
			})
			continue
		}

		entry.Set(code, rate)
	}

	return entry, true
}

// ParseRate reads a decimal rate, accepting a comma as the decimal separator
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Decimal{}, errors.New("empty rate")
	}

	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse rate %q: %w", s, err)
	}
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("rate %s is not positive", rate)
	}

	return rate, nil
}

// passthroughCharset accepts single-byte declarations; all element and
// attribute names the parser reads are ASCII.
func passthroughCharset(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "utf-8", "utf8", "us-ascii", "ascii", "iso-8859-1", "iso-8859-2", "windows-1250", "cp1250":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", charset)
}
