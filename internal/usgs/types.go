package usgs

// Coordinate is a decimal-degree latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AcquisitionFilter bounds scene acquisition dates, inclusive, as YYYY-MM-DD.
type AcquisitionFilter struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CloudCoverFilter bounds scene cloud-cover percentages.
type CloudCoverFilter struct {
	Min            int  `json:"min"`
	Max            int  `json:"max"`
	IncludeUnknown bool `json:"includeUnknown"`
}

// SpatialFilterMbr restricts results to a minimum bounding rectangle.
type SpatialFilterMbr struct {
	FilterType string      `json:"filterType"` // always "mbr"
	LowerLeft  *Coordinate `json:"lowerLeft"`
	UpperRight *Coordinate `json:"upperRight"`
}

// SceneFilter restricts a scene search. Nil members are omitted from the
// request so the service applies no filter for them.
type SceneFilter struct {
	AcquisitionFilter *AcquisitionFilter `json:"acquisitionFilter,omitempty"`
	CloudCoverFilter  *CloudCoverFilter  `json:"cloudCoverFilter,omitempty"`
	SpatialFilter     *SpatialFilterMbr  `json:"spatialFilter,omitempty"`
	SeasonalFilter    []int              `json:"seasonalFilter,omitempty"` // month numbers 1-12
}

// SearchResult is one scene returned by scene-search.
type SearchResult struct {
	EntityID  string `json:"entityId"`
	DisplayID string `json:"displayId"`
}

// SceneSearchPage is one page of scene-search results.
type SceneSearchPage struct {
	Results         []SearchResult `json:"results"`
	RecordsReturned int            `json:"recordsReturned"`
	TotalHits       int            `json:"totalHits"`
	StartingNumber  int            `json:"startingNumber"`
	NextRecord      int            `json:"nextRecord"`
}

// MetadataField is one field of a scene's full metadata.
type MetadataField struct {
	FieldName string `json:"fieldName"`
	Value     any    `json:"value"`
}

// SceneDetails is the scene-metadata response for one scene.
type SceneDetails struct {
	EntityID  string          `json:"entityId"`
	DisplayID string          `json:"displayId"`
	Metadata  []MetadataField `json:"metadata"`
}

// DownloadOption is one orderable product for a scene.
type DownloadOption struct {
	ID            int    `json:"id"`
	EntityID      string `json:"entityId"`
	DisplayID     string `json:"displayId"`
	Available     bool   `json:"available"`
	ProductName   string `json:"productName"`
	FilesizeBytes int64  `json:"filesize"`
}

// DownloadProduct selects one product of one scene for ordering.
type DownloadProduct struct {
	EntityID  string `json:"entityId"`
	ProductID int    `json:"productId"`
}

// QueueEntry is one entry of the remote download queue.
type QueueEntry struct {
	DownloadID int    `json:"downloadId"`
	EntityID   string `json:"entityId"`
	DisplayID  string `json:"displayId"`
	URL        string `json:"url"`
	StatusText string `json:"statusText"`
	Filesize   int64  `json:"filesize"`
}

// DownloadRequestResult reports how an order was split: downloads that can
// be fetched immediately versus ones the service is still staging.
type DownloadRequestResult struct {
	AvailableDownloads []QueueEntry `json:"availableDownloads"`
	PreparingDownloads []QueueEntry `json:"preparingDownloads"`
}

// DownloadQueue is the download-retrieve response.
type DownloadQueue struct {
	Available []QueueEntry `json:"available"`
	Requested []QueueEntry `json:"requested"`
	QueueSize int          `json:"queueSize"`
}

// Entries returns available and requested entries as one slice.
func (q *DownloadQueue) Entries() []QueueEntry {
	out := make([]QueueEntry, 0, len(q.Available)+len(q.Requested))
	out = append(out, q.Available...)
	out = append(out, q.Requested...)
	return out
}

// Request payloads. Optional members carry omitempty so absent values are
// omitted rather than sent as zero values.

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginTokenRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type sceneSearchRequest struct {
	DatasetName    string       `json:"datasetName"`
	MaxResults     int          `json:"maxResults,omitempty"`
	StartingNumber int          `json:"startingNumber,omitempty"`
	MetadataType   string       `json:"metadataType,omitempty"`
	SceneFilter    *SceneFilter `json:"sceneFilter,omitempty"`
}

type sceneMetadataRequest struct {
	DatasetName  string `json:"datasetName"`
	EntityID     string `json:"entityId"`
	IDType       string `json:"idType,omitempty"`
	MetadataType string `json:"metadataType,omitempty"`
}

type sceneListAddRequest struct {
	ListID      string   `json:"listId"`
	DatasetName string   `json:"datasetName"`
	IDField     string   `json:"idField,omitempty"`
	EntityIDs   []string `json:"entityIds,omitempty"`
	TimeToLive  string   `json:"timeToLive,omitempty"`
}

type sceneListRemoveRequest struct {
	ListID      string   `json:"listId"`
	DatasetName string   `json:"datasetName,omitempty"`
	EntityIDs   []string `json:"entityIds,omitempty"`
}

type downloadOptionsRequest struct {
	DatasetName string `json:"datasetName"`
	ListID      string `json:"listId,omitempty"`
}

type downloadRequestRequest struct {
	Downloads []DownloadProduct `json:"downloads"`
	Label     string            `json:"label,omitempty"`
}

type downloadRetrieveRequest struct {
	Label string `json:"label,omitempty"`
}

type downloadRemoveRequest struct {
	DownloadID int `json:"downloadId"`
}
