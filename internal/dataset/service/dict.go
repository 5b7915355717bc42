package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/ndpcatalog/internal/dataset/domain"
	orgdomain "github.com/smallbiznis/ndpcatalog/internal/organization/domain"
	"gorm.io/datatypes"
)

var reservedKeys = map[string]struct{}{
	"id":                {},
	"name":              {},
	"title":             {},
	"notes":             {},
	"owner_org":         {},
	"private":           {},
	"state":             {},
	"type":              {},
	"creator_user_id":   {},
	"resources":         {},
	"organization":      {},
	"extras":            {},
	"metadata_created":  {},
	"metadata_modified": {},
	"num_resources":     {},
}

var reservedResourceKeys = map[string]struct{}{
	"id":          {},
	"package_id":  {},
	"position":    {},
	"name":        {},
	"url":         {},
	"format":      {},
	"description": {},
	"created":     {},
}

var validName = regexp.MustCompile(`^[a-z0-9_-]{2,100}$`)

// toDict renders a dataset the way package_show does. Extras are merged at the
// top level and never shadow core fields.
func toDict(ds *domain.Dataset, org *orgdomain.Organization) domain.Dict {
	d := domain.Dict{}
	for k, v := range ds.Extras {
		d[k] = v
	}

	d["id"] = ds.ID.String()
	d["name"] = ds.Name
	d["title"] = ds.Title
	d["notes"] = ds.Notes
	d["creator_user_id"] = ds.CreatorUserID.String()
	d["private"] = ds.Private
	d["state"] = ds.State
	d["type"] = domain.TypeDataset
	d["metadata_created"] = ds.CreatedAt.UTC().Format(time.RFC3339)
	d["metadata_modified"] = ds.MetadataModified.UTC().Format(time.RFC3339)
	d["owner_org"] = nil
	if ds.OwnerOrg != nil {
		d["owner_org"] = ds.OwnerOrg.String()
	}
	if org != nil {
		d["organization"] = map[string]any{
			"id":              org.ID.String(),
			"name":            org.Name,
			"title":           org.Title,
			"description":     org.Description,
			"type":            org.Type,
			"is_organization": org.IsOrganization,
			"state":           org.State,
		}
	}

	resources := make([]any, 0, len(ds.Resources))
	for _, res := range ds.Resources {
		rd := map[string]any{}
		for k, v := range res.Extras {
			rd[k] = v
		}
		rd["id"] = res.ID.String()
		rd["package_id"] = ds.ID.String()
		rd["position"] = res.Position
		rd["name"] = res.Name
		rd["url"] = res.URL
		rd["format"] = res.Format
		rd["description"] = res.Description
		resources = append(resources, rd)
	}
	d["resources"] = resources
	d["num_resources"] = len(resources)

	return d
}

// extrasFrom collects non-core keys plus any CKAN style [{key, value}] extras list.
func extrasFrom(data domain.Dict) (datatypes.JSONMap, bool) {
	extras := datatypes.JSONMap{}
	found := false
	for k, v := range data {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		extras[k] = v
		found = true
	}
	if list, ok := data["extras"].([]any); ok {
		found = true
		for _, item := range list {
			kv, ok := item.(map[string]any)
			if !ok {
				continue
			}
			key := stringField(kv, "key")
			if key == "" {
				continue
			}
			if _, reserved := reservedKeys[key]; reserved {
				continue
			}
			extras[key] = kv["value"]
		}
	}
	return extras, found
}

func resourcesFrom(data domain.Dict) ([]map[string]any, bool, error) {
	raw, ok := data["resources"]
	if !ok {
		return nil, false, nil
	}
	if raw == nil {
		return nil, true, nil
	}
	list, ok := raw.([]any)
	if !ok {
		if typed, ok := raw.([]map[string]any); ok {
			return typed, true, nil
		}
		return nil, true, domain.ErrInvalidResource
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		rd, ok := item.(map[string]any)
		if !ok {
			return nil, true, domain.ErrInvalidResource
		}
		out = append(out, rd)
	}
	return out, true, nil
}

func resourceExtras(rd map[string]any) datatypes.JSONMap {
	extras := datatypes.JSONMap{}
	for k, v := range rd {
		if _, reserved := reservedResourceKeys[k]; reserved {
			continue
		}
		extras[k] = v
	}
	return extras
}

func stringField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func boolField(data map[string]any, key string) bool {
	switch v := data[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	default:
		return false
	}
}

func hasKey(data map[string]any, key string) bool {
	_, ok := data[key]
	return ok
}
