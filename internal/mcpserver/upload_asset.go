package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const maxAssetSize = 10 << 20 // 10 MB

type attachmentResult struct {
	SavedPath     string `json:"savedPath"`
	MarkdownImage string `json:"markdownImage"`
}

func (s *Server) saveAttachment(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := vaultID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filename := req.GetString("filename", "")

	data, err := decodePayload(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxAssetSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxAssetSize)), nil
	}

	p, err := s.store.SaveAttachment(id, filename, data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save attachment: %v", err)), nil
	}

	name := strings.TrimPrefix(p, ".attachments/")
	out, _ := json.Marshal(attachmentResult{
		SavedPath:     p,
		MarkdownImage: fmt.Sprintf("![%s](%s)", name, p),
	})
	return mcp.NewToolResultText(string(out)), nil
}

// decodePayload accepts plain base64 or a data:[<mediatype>];base64,<data> URI.
func decodePayload(raw string) ([]byte, error) {
	encoded := raw
	if rest, ok := strings.CutPrefix(raw, "data:"); ok {
		meta, body, found := strings.Cut(rest, ",")
		if !found {
			return nil, fmt.Errorf("invalid data URI: missing comma separator")
		}
		if !strings.Contains(meta, ";base64") {
			return nil, fmt.Errorf("only base64 data URIs are supported")
		}
		encoded = body
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}
