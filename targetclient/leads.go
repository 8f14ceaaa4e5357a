package targetclient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-querystring/query"
)

// leadTimeLayout is the date format the lead endpoints expect. The layout tags
// on LeadFilter must match it.
const leadTimeLayout = "2006-01-02 15:04:05"

// LeadFilter narrows the leads returned by GetOKLead. Zero fields are omitted.
type LeadFilter struct {
	// Limit is the page size. The API defaults to 20 and allows at most 50.
	Limit int `url:"limit,omitempty" validate:"omitempty,min=1,max=50"`
	// Offset skips leads from the start of the list.
	Offset int `url:"offset,omitempty" validate:"gte=0"`

	CreatedBefore     time.Time `url:"_created_time__lt,omitempty"  layout:"2006-01-02 15:04:05"`
	CreatedAfter      time.Time `url:"_created_time__gt,omitempty"  layout:"2006-01-02 15:04:05"`
	CreatedAtOrBefore time.Time `url:"_created_time__lte,omitempty" layout:"2006-01-02 15:04:05"`
	CreatedAtOrAfter  time.Time `url:"_created_time__gte,omitempty" layout:"2006-01-02 15:04:05"`

	CampaignIDs []int64 `url:"_campaign_id__in,comma,omitempty"`
	CampaignID  int64   `url:"_campaign_id,omitempty"`
	BannerIDs   []int64 `url:"_banner_id__in,comma,omitempty"`
	BannerID    int64   `url:"_banner_id,omitempty"`
}

// GetOKLead fetches the leads collected by the OK lead form formID.
// filter may be nil. formID is passed to the API as is.
func (c *Client) GetOKLead(ctx context.Context, formID string, filter *LeadFilter) (*Result, error) {
	opts := &RequestOptions{}
	if filter != nil {
		if err := validate.Struct(filter); err != nil {
			return nil, fmt.Errorf("invalid lead filter: %w", err)
		}
		values, err := query.Values(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to encode lead filter: %w", err)
		}
		opts.Query = values
	}

	return c.requestData(ctx, HttpGet, fmt.Sprintf("v2/ok/lead_ads/%s.json", formID), opts)
}
