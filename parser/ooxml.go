package parser

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"log/slog"
	"strings"
)

// indexZip builds a name -> entry index for quick lookup.
func indexZip(r *zip.Reader) map[string]*zip.File {
	fileIndex := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileIndex[f.Name] = f
	}
	return fileIndex
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// coreProps is docProps/core.xml, shared by every OOXML package.
type coreProps struct {
	Creator        string `xml:"creator"`
	LastModifiedBy string `xml:"lastModifiedBy"`
	Created        string `xml:"created"`
	LastPrinted    string `xml:"lastPrinted"`
	Revision       string `xml:"revision"`
}

func parseCoreProps(fileIndex map[string]*zip.File) Properties {
	f := fileIndex["docProps/core.xml"]
	if f == nil {
		return Properties{}
	}
	data, err := readZipFile(f)
	if err != nil {
		return Properties{}
	}
	var cp coreProps
	if err := xml.Unmarshal(data, &cp); err != nil {
		slog.Debug("ooxml: parsing core.xml", "error", err)
		return Properties{}
	}
	return Properties{
		Author:         strings.TrimSpace(cp.Creator),
		LastModifiedBy: strings.TrimSpace(cp.LastModifiedBy),
		Created:        strings.TrimSpace(cp.Created),
		LastPrinted:    strings.TrimSpace(cp.LastPrinted),
		Revision:       strings.TrimSpace(cp.Revision),
	}
}
