package validators

import "go.mongodb.org/mongo-driver/bson"

var EmployeeBookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"employee",
			"from_datetime",
			"to_datetime",
			"source_kind",
			"source_name",
			"booking_type",
			"blocks_availability",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"employee": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 140,
			},

			"from_datetime": bson.M{
				"bsonType": "date",
			},

			"to_datetime": bson.M{
				"bsonType": "date",
			},

			"source_kind": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 140,
			},

			"source_name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 140,
			},

			"booking_type": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 60,
			},

			"blocks_availability": bson.M{
				"bsonType": "bool",
			},

			"location": bson.M{
				"bsonType":  "string",
				"maxLength": 140,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
