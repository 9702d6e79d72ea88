package client

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// CompanyPage is the minimal EDGAR-side company record scraped from the
// /cgi-bin/browse-edgar company page. It is not a catalogue entity; it
// exists only as a convenience lookup over the live site.
type CompanyPage struct {
	CIK  int64
	Name string
	SIC  string
}

// CompanyIndustryXref is a historical SIC/CIK cross-reference row from the
// CFIA tables (supplemental, see SPEC_FULL.md §3).
type CompanyIndustryXref struct {
	CIK  int64
	SIC  string
	Name string
}

// GetCompany scrapes the basic company record for cik from EDGAR's
// company-search page.
func (c *Client) GetCompany(ctx context.Context, cik int64) (*CompanyPage, error) {
	path := "/cgi-bin/browse-edgar?action=getcompany&CIK=" + strconv.FormatInt(cik, 10) + "&type=&dateb=&owner=include&count=1"
	body, _, err := c.GetBuffer(ctx, path)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, eris.Errorf("edgar client: get company: no body for CIK %d", cik)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, eris.Wrap(err, "edgar client: parse company page")
	}

	name := strings.TrimSpace(doc.Find(".companyName").First().Text())
	if name == "" {
		// Strip any trailing "CIK#: ..." suffix the reference page appends.
		name = strings.TrimSpace(doc.Find("span.companyName").First().Text())
	}
	if idx := strings.Index(name, "CIK#"); idx >= 0 {
		name = strings.TrimSpace(name[:idx])
	}

	sic := strings.TrimSpace(doc.Find(".identInfo acronym").First().Text())

	return &CompanyPage{CIK: cik, Name: name, SIC: sic}, nil
}

// GetCFIAIndex fetches the CFIA SIC/CIK cross-reference index page,
// returning the set of section links to pass to GetCFIATable.
func (c *Client) GetCFIAIndex(ctx context.Context) ([]string, error) {
	path := "/cgi-bin/browse-edgar?action=getcompany&SIC=&dateb=&owner=include&count=100&action=getcompany"
	return c.ListPath(ctx, path)
}

// GetCFIATable fetches and parses one CFIA cross-reference table.
func (c *Client) GetCFIATable(ctx context.Context, index string) ([]CompanyIndustryXref, error) {
	body, _, err := c.GetBuffer(ctx, index)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, eris.Wrap(err, "edgar client: parse CFIA table")
	}

	var rows []CompanyIndustryXref
	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 3 {
			return
		}
		cikText := strings.TrimSpace(cells.Eq(0).Text())
		cik, convErr := strconv.ParseInt(strings.TrimLeft(cikText, "0"), 10, 64)
		if convErr != nil {
			return
		}
		sic := strings.TrimSpace(cells.Eq(1).Text())
		name := strings.TrimSpace(cells.Eq(2).Text())
		rows = append(rows, CompanyIndustryXref{CIK: cik, SIC: sic, Name: name})
	})

	return rows, nil
}
