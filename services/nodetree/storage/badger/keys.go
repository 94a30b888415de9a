// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
)

// Key layout. Segments are joined with NUL so identifiers may contain '/'.
//
//	n|<cs>|<dsp>|<id>                node
//	c|<cs>|<dsp>|<parent>|<pos>|<id> hierarchy edge, <pos> zero padded
//	h|<cs>|<dsp>|<id>                hidden marker
//	w|<name>                         workspace
//	s|<cs>                           content stream -> workspace name
//	x|<cs>|<id>|<dsp>                pending change
const keySep = "\x00"

const (
	prefixNode      = "n"
	prefixChild     = "c"
	prefixHidden    = "h"
	prefixWorkspace = "w"
	prefixStream    = "s"
	prefixChange    = "x"
)

func joinKey(parts ...string) []byte {
	return []byte(strings.Join(parts, keySep))
}

func nodeKey(cs address.ContentStreamID, dv address.DimensionVariant, id address.NodeAggregateID) []byte {
	return joinKey(prefixNode, string(cs), dv.String(), string(id))
}

func childPrefix(cs address.ContentStreamID, dv address.DimensionVariant, parent address.NodeAggregateID) []byte {
	return append(joinKey(prefixChild, string(cs), dv.String(), string(parent)), keySep...)
}

func childKey(cs address.ContentStreamID, dv address.DimensionVariant, parent address.NodeAggregateID, pos int, id address.NodeAggregateID) []byte {
	return joinKey(prefixChild, string(cs), dv.String(), string(parent), fmt.Sprintf("%010d", pos), string(id))
}

// childIDFromKey returns the trailing aggregate id of a hierarchy key.
func childIDFromKey(key []byte) address.NodeAggregateID {
	s := string(key)
	return address.NodeAggregateID(s[strings.LastIndex(s, keySep)+1:])
}

func hiddenKey(cs address.ContentStreamID, dv address.DimensionVariant, id address.NodeAggregateID) []byte {
	return joinKey(prefixHidden, string(cs), dv.String(), string(id))
}

func workspaceKey(name address.WorkspaceName) []byte {
	return joinKey(prefixWorkspace, string(name))
}

func workspacePrefix() []byte {
	return []byte(prefixWorkspace + keySep)
}

func streamKey(cs address.ContentStreamID) []byte {
	return joinKey(prefixStream, string(cs))
}

func changeKey(cs address.ContentStreamID, id address.NodeAggregateID, dv address.DimensionVariant) []byte {
	return joinKey(prefixChange, string(cs), string(id), dv.String())
}

func changePrefix(cs address.ContentStreamID) []byte {
	return append(joinKey(prefixChange, string(cs)), keySep...)
}
