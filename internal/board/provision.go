package board

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// EnumOption describes one choice of an enum custom field.
type EnumOption struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type namedResource struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// ProvisionResult reports the identifiers of the fields and sections the
// service needs, suitable for pasting into the configuration.
type ProvisionResult struct {
	Fields   map[string]string
	Sections map[string]string
}

// Provision ensures the workspace carries the custom fields and the project
// carries the sections the confirmation flow reads and writes. Existing
// fields and sections are reused by name.
func (b *AsanaBoard) Provision(ctx context.Context) (*ProvisionResult, error) {
	result := &ProvisionResult{
		Fields:   make(map[string]string),
		Sections: make(map[string]string),
	}

	fieldSpecs := []struct {
		key     string
		name    string
		subtype string
		options []EnumOption
	}{
		{key: string(FieldPhoneNumber), name: "Phone Number", subtype: "text"},
		{key: string(FieldOperationMode), name: "Operation Mode", subtype: "enum", options: []EnumOption{
			{Name: "pickup", Color: "blue"},
			{Name: "delivery", Color: "green"},
		}},
		{key: string(FieldRetryCount), name: "Retry Count", subtype: "number"},
		{key: string(FieldLastCallTime), name: "Last Call Time", subtype: "text"},
		{key: string(FieldCallOutcome), name: "Call Outcome", subtype: "enum", options: []EnumOption{
			{Name: "confirmed", Color: "green"},
			{Name: "declined", Color: "red"},
			{Name: "no_answer", Color: "yellow"},
			{Name: "busy", Color: "orange"},
			{Name: "failed", Color: "red"},
		}},
		{key: string(FieldCallSID), name: "Call SID", subtype: "text"},
	}

	for _, spec := range fieldSpecs {
		gid, err := b.ensureField(ctx, spec.name, spec.subtype, spec.options)
		if err != nil {
			return nil, fmt.Errorf("board: ensure field %q: %w", spec.name, err)
		}
		result.Fields[spec.key] = gid
	}

	sectionSpecs := []struct {
		key  string
		name string
	}{
		{key: "pending_confirmation", name: "Pending Confirmation"},
		{key: "confirmed", name: "Confirmed"},
		{key: "customer_unavailable", name: "Customer Unavailable"},
	}

	for _, spec := range sectionSpecs {
		gid, err := b.ensureSection(ctx, spec.name)
		if err != nil {
			return nil, fmt.Errorf("board: ensure section %q: %w", spec.name, err)
		}
		result.Sections[spec.key] = gid
	}

	return result, nil
}

func (b *AsanaBoard) ensureField(ctx context.Context, name, subtype string, options []EnumOption) (string, error) {
	var existing struct {
		Data []namedResource `json:"data"`
	}
	path := "/workspaces/" + b.cfg.WorkspaceID + "/custom_fields?opt_fields=gid,name"
	if err := b.do(ctx, http.MethodGet, path, nil, &existing); err != nil {
		return "", fmt.Errorf("list custom fields: %w", err)
	}
	for _, field := range existing.Data {
		if field.Name == name {
			b.logger.Info("custom field exists",
				zap.String("name", name), zap.String("gid", field.GID))
			return field.GID, nil
		}
	}

	data := map[string]any{
		"name":             name,
		"resource_subtype": subtype,
		"workspace":        b.cfg.WorkspaceID,
	}
	if len(options) > 0 {
		data["enum_options"] = options
	}

	var created struct {
		Data namedResource `json:"data"`
	}
	if err := b.do(ctx, http.MethodPost, "/custom_fields", map[string]any{"data": data}, &created); err != nil {
		return "", fmt.Errorf("create custom field: %w", err)
	}
	b.logger.Info("created custom field",
		zap.String("name", name), zap.String("gid", created.Data.GID))
	return created.Data.GID, nil
}

func (b *AsanaBoard) ensureSection(ctx context.Context, name string) (string, error) {
	var existing struct {
		Data []namedResource `json:"data"`
	}
	path := "/projects/" + b.cfg.ProjectID + "/sections?opt_fields=gid,name"
	if err := b.do(ctx, http.MethodGet, path, nil, &existing); err != nil {
		return "", fmt.Errorf("list sections: %w", err)
	}
	for _, section := range existing.Data {
		if section.Name == name {
			b.logger.Info("section exists",
				zap.String("name", name), zap.String("gid", section.GID))
			return section.GID, nil
		}
	}

	var created struct {
		Data namedResource `json:"data"`
	}
	body := map[string]any{"data": map[string]any{"name": name}}
	if err := b.do(ctx, http.MethodPost, "/projects/"+b.cfg.ProjectID+"/sections", body, &created); err != nil {
		return "", fmt.Errorf("create section: %w", err)
	}
	b.logger.Info("created section",
		zap.String("name", name), zap.String("gid", created.Data.GID))
	return created.Data.GID, nil
}
