package ingest

import "errors"

var (
	errUnknownFormat     = errors.New("ingest: unrecognized Format value")
	errIncompleteSidecar = errors.New("ingest: sidecar missing a required key (ObjectFileName, Resolution, Format)")
	errBadTriple         = errors.New("ingest: expected three whitespace-separated values")
	errNotNRRD           = errors.New("ingest: missing NRRD magic")
	errUnsupportedNRRD   = errors.New("ingest: only NRRD0004/NRRD0005 raw little-endian encoding is supported")
	errMissingNRRDField  = errors.New("ingest: NRRD header missing a required field (sizes, type, encoding)")
	errDICOMUnsupported  = errors.New("ingest: DICOM series decoding is out of scope; convert to a sidecar-described raw volume first")
)
