package schema

import _ "embed"

// ProcvisorV1Schema contains the JSON schema for procvisor manifests.
//
//go:embed procvisor.v1.json
var ProcvisorV1Schema []byte
