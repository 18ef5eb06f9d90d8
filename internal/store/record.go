package store

// SceneRecord is one row of the scenes table. Pointer fields are nullable:
// the catalog omits fields for some products and sensors. The csv tags are
// the documented export header names, in table column order.
type SceneRecord struct {
	LandsatProductIdentifierL2 *string  `csv:"landsat-product-identifier-l2"`
	LandsatProductIdentifierL1 *string  `csv:"landsat-product-identifier-l1"`
	LandsatSceneIdentifier     string   `csv:"landsat-scene-identifier"`
	DateAcquired               *string  `csv:"date-acquired"`
	CollectionCategory         *string  `csv:"collection-category"`
	CollectionNumber           *int64   `csv:"collection-number"`
	WRSPath                    *string  `csv:"wrs-path"`
	WRSRow                     *string  `csv:"wrs-row"`
	TargetWRSPath              *string  `csv:"target-wrs-path"`
	TargetWRSRow               *string  `csv:"target-wrs-row"`
	NadirOffNadir              *string  `csv:"nadir-off-nadir"`
	RollAngle                  *float64 `csv:"roll-angle"`
	DateProductGeneratedL2     *string  `csv:"date-product-generated-l2"`
	DateProductGeneratedL1     *string  `csv:"date-product-generated-l1"`
	StartTime                  *string  `csv:"start-time"`
	StopTime                   *string  `csv:"stop-time"`
	StationIdentifier          *string  `csv:"station-identifier"`
	DayNightIndicator          *string  `csv:"day-night-indicator"`
	LandCloudCover             *float64 `csv:"land-cloud-cover"`
	SceneCloudCoverL1          *float64 `csv:"scene-cloud-cover-l1"`
	GroundControlPointsModel   *int64   `csv:"ground-control-points-model"`
	GroundControlPointsVersion *int64   `csv:"ground-control-points-version"`
	GeometricRMSEModel         *float64 `csv:"geometric-rmse-model"`
	GeometricRMSEModelX        *float64 `csv:"geometric-rmse-model-x"`
	GeometricRMSEModelY        *float64 `csv:"geometric-rmse-model-y"`
	ProcessingSoftwareVersion  *string  `csv:"processing-software-version"`
	SunElevationL0RA           *float64 `csv:"sun-elevation-l0ra"`
	SunAzimuthL0RA             *float64 `csv:"sun-azimuth-l0ra"`
	TIRSSSMModel               *string  `csv:"tirs-ssm-model"`
	DataTypeL2                 *string  `csv:"data-type-l2"`
	SensorIdentifier           *string  `csv:"sensor-identifier"`
	Satellite                  *int64   `csv:"satellite"`
	ProductMapProjectionL1     *string  `csv:"product-map-projection-l1"`
	UTMZone                    *int64   `csv:"utm-zone"`
	Datum                      *string  `csv:"datum"`
	Ellipsoid                  *string  `csv:"ellipsoid"`
	SceneCenterLatDMS          *string  `csv:"scene-center-lat-dms"`
	SceneCenterLongDMS         *string  `csv:"scene-center-long-dms"`
	CornerUpperLeftLatDMS      *string  `csv:"corner-upper-left-lat-dms"`
	CornerUpperLeftLongDMS     *string  `csv:"corner-upper-left-long-dms"`
	CornerUpperRightLatDMS     *string  `csv:"corner-upper-right-lat-dms"`
	CornerUpperRightLongDMS    *string  `csv:"corner-upper-right-long-dms"`
	CornerLowerLeftLatDMS      *string  `csv:"corner-lower-left-lat-dms"`
	CornerLowerLeftLongDMS     *string  `csv:"corner-lower-left-long-dms"`
	CornerLowerRightLatDMS     *string  `csv:"corner-lower-right-lat-dms"`
	CornerLowerRightLongDMS    *string  `csv:"corner-lower-right-long-dms"`
	SceneCenterLatitude        *float64 `csv:"scene-center-latitude"`
	SceneCenterLongitude       *float64 `csv:"scene-center-longitude"`
	CornerUpperLeftLatitude    *float64 `csv:"corner-upper-left-latitude"`
	CornerUpperLeftLongitude   *float64 `csv:"corner-upper-left-longitude"`
	CornerUpperRightLatitude   *float64 `csv:"corner-upper-right-latitude"`
	CornerUpperRightLongitude  *float64 `csv:"corner-upper-right-longitude"`
	CornerLowerLeftLatitude    *float64 `csv:"corner-lower-left-latitude"`
	CornerLowerLeftLongitude   *float64 `csv:"corner-lower-left-longitude"`
	CornerLowerRightLatitude   *float64 `csv:"corner-lower-right-latitude"`
	CornerLowerRightLongitude  *float64 `csv:"corner-lower-right-longitude"`
	Link                       *string  `csv:"link"`
	DownloadSuccessful         bool     `csv:"download_successful"`
}

// scanDest returns scan targets for a SELECT * row, in table column order.
func (r *SceneRecord) scanDest() []any {
	return []any{
		&r.LandsatProductIdentifierL2,
		&r.LandsatProductIdentifierL1,
		&r.LandsatSceneIdentifier,
		&r.DateAcquired,
		&r.CollectionCategory,
		&r.CollectionNumber,
		&r.WRSPath,
		&r.WRSRow,
		&r.TargetWRSPath,
		&r.TargetWRSRow,
		&r.NadirOffNadir,
		&r.RollAngle,
		&r.DateProductGeneratedL2,
		&r.DateProductGeneratedL1,
		&r.StartTime,
		&r.StopTime,
		&r.StationIdentifier,
		&r.DayNightIndicator,
		&r.LandCloudCover,
		&r.SceneCloudCoverL1,
		&r.GroundControlPointsModel,
		&r.GroundControlPointsVersion,
		&r.GeometricRMSEModel,
		&r.GeometricRMSEModelX,
		&r.GeometricRMSEModelY,
		&r.ProcessingSoftwareVersion,
		&r.SunElevationL0RA,
		&r.SunAzimuthL0RA,
		&r.TIRSSSMModel,
		&r.DataTypeL2,
		&r.SensorIdentifier,
		&r.Satellite,
		&r.ProductMapProjectionL1,
		&r.UTMZone,
		&r.Datum,
		&r.Ellipsoid,
		&r.SceneCenterLatDMS,
		&r.SceneCenterLongDMS,
		&r.CornerUpperLeftLatDMS,
		&r.CornerUpperLeftLongDMS,
		&r.CornerUpperRightLatDMS,
		&r.CornerUpperRightLongDMS,
		&r.CornerLowerLeftLatDMS,
		&r.CornerLowerLeftLongDMS,
		&r.CornerLowerRightLatDMS,
		&r.CornerLowerRightLongDMS,
		&r.SceneCenterLatitude,
		&r.SceneCenterLongitude,
		&r.CornerUpperLeftLatitude,
		&r.CornerUpperLeftLongitude,
		&r.CornerUpperRightLatitude,
		&r.CornerUpperRightLongitude,
		&r.CornerLowerLeftLatitude,
		&r.CornerLowerLeftLongitude,
		&r.CornerLowerRightLatitude,
		&r.CornerLowerRightLongitude,
		&r.Link,
		&r.DownloadSuccessful,
	}
}

// metadataColumns lists the metadata columns of the scenes table in order,
// excluding link and download_successful which are set by the caller. The
// names equal normalized catalog field names, so inserts can map incoming
// metadata to columns directly.
var metadataColumns = []string{
	"landsat_product_identifier_l2",
	"landsat_product_identifier_l1",
	"landsat_scene_identifier",
	"date_acquired",
	"collection_category",
	"collection_number",
	"wrs_path",
	"wrs_row",
	"target_wrs_path",
	"target_wrs_row",
	"nadir_off_nadir",
	"roll_angle",
	"date_product_generated_l2",
	"date_product_generated_l1",
	"start_time",
	"stop_time",
	"station_identifier",
	"day_night_indicator",
	"land_cloud_cover",
	"scene_cloud_cover_l1",
	"ground_control_points_model",
	"ground_control_points_version",
	"geometric_rmse_model",
	"geometric_rmse_model_x",
	"geometric_rmse_model_y",
	"processing_software_version",
	"sun_elevation_l0ra",
	"sun_azimuth_l0ra",
	"tirs_ssm_model",
	"data_type_l2",
	"sensor_identifier",
	"satellite",
	"product_map_projection_l1",
	"utm_zone",
	"datum",
	"ellipsoid",
	"scene_center_lat_dms",
	"scene_center_long_dms",
	"corner_upper_left_lat_dms",
	"corner_upper_left_long_dms",
	"corner_upper_right_lat_dms",
	"corner_upper_right_long_dms",
	"corner_lower_left_lat_dms",
	"corner_lower_left_long_dms",
	"corner_lower_right_lat_dms",
	"corner_lower_right_long_dms",
	"scene_center_latitude",
	"scene_center_longitude",
	"corner_upper_left_latitude",
	"corner_upper_left_longitude",
	"corner_upper_right_latitude",
	"corner_upper_right_longitude",
	"corner_lower_left_latitude",
	"corner_lower_left_longitude",
	"corner_lower_right_latitude",
	"corner_lower_right_longitude",
}

const sceneIDColumn = "landsat_scene_identifier"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS scenes (
    landsat_product_identifier_l2 TEXT,
    landsat_product_identifier_l1 TEXT,
    landsat_scene_identifier TEXT PRIMARY KEY,
    date_acquired DATE,
    collection_category TEXT,
    collection_number INTEGER,
    wrs_path TEXT,
    wrs_row TEXT,
    target_wrs_path TEXT,
    target_wrs_row TEXT,
    nadir_off_nadir TEXT,
    roll_angle REAL,
    date_product_generated_l2 DATE,
    date_product_generated_l1 DATE,
    start_time DATETIME,
    stop_time DATETIME,
    station_identifier TEXT,
    day_night_indicator TEXT,
    land_cloud_cover REAL,
    scene_cloud_cover_l1 REAL,
    ground_control_points_model INTEGER,
    ground_control_points_version INTEGER,
    geometric_rmse_model REAL,
    geometric_rmse_model_x REAL,
    geometric_rmse_model_y REAL,
    processing_software_version TEXT,
    sun_elevation_l0ra REAL,
    sun_azimuth_l0ra REAL,
    tirs_ssm_model TEXT,
    data_type_l2 TEXT,
    sensor_identifier TEXT,
    satellite INTEGER,
    product_map_projection_l1 TEXT,
    utm_zone INTEGER,
    datum TEXT,
    ellipsoid TEXT,
    scene_center_lat_dms TEXT,
    scene_center_long_dms TEXT,
    corner_upper_left_lat_dms TEXT,
    corner_upper_left_long_dms TEXT,
    corner_upper_right_lat_dms TEXT,
    corner_upper_right_long_dms TEXT,
    corner_lower_left_lat_dms TEXT,
    corner_lower_left_long_dms TEXT,
    corner_lower_right_lat_dms TEXT,
    corner_lower_right_long_dms TEXT,
    scene_center_latitude REAL,
    scene_center_longitude REAL,
    corner_upper_left_latitude REAL,
    corner_upper_left_longitude REAL,
    corner_upper_right_latitude REAL,
    corner_upper_right_longitude REAL,
    corner_lower_left_latitude REAL,
    corner_lower_left_longitude REAL,
    corner_lower_right_latitude REAL,
    corner_lower_right_longitude REAL,
    link TEXT,
    download_successful BOOL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_scenes_download_successful ON scenes(download_successful);
`
