package utils

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

// get type name of struct
func GetType(i interface{}) string {
	return reflect.TypeOf(i).Name()
}

/* Redis */

// check if model has expiration date
func typeHasExpiration(typeName string) bool {
	expirableTypes := map[string]bool{
		"SocialConnection": true,
		"ApprovalSettings": true,
		"Workspace":        true,
		"User":             true,
	}
	return expirableTypes[typeName]
}

// store instance, obj should be a pointer
func StoreRedis[T any](obj any, id int) error {
	typeName := GetTypeName[T]()
	key := typeName + ":" + fmt.Sprint(id)

	var duration time.Duration
	if typeHasExpiration(typeName) {
		duration = GetCacheLifespan()
	}
	return config.SetRedisObject(key, &obj, duration)
}

// retrieve instance from cache; (nil, nil) on miss
func RetrieveRedis[T any](id int) (*T, error) {
	typeName := GetTypeName[T]()
	key := typeName + ":" + fmt.Sprint(id)

	var obj T
	found, err := config.GetRedisObject(key, &obj)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &obj, nil
}

func RemoveRedisObject[T any](id int) error {
	typeName := GetTypeName[T]()
	key := typeName + ":" + fmt.Sprint(id)
	return config.RemoveRedisKey(key)
}

// store workspace-scoped list
func StoreRedisList[T any](obj any, workspaceId string) error {
	typeName := GetTypeName[T]()
	key := typeName + ":List:" + workspaceId

	var duration time.Duration
	if typeHasExpiration(typeName) {
		duration = GetCacheLifespan()
	}
	return config.SetRedisObject(key, &obj, duration)
}

// retrieve workspace-scoped list; (nil, nil) on miss
func RetrieveRedisList[T any](workspaceId string) ([]*T, error) {
	typeName := GetTypeName[T]()
	key := typeName + ":List:" + workspaceId

	var list []*T
	found, err := config.GetRedisObject(key, &list)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return list, nil
}

func InvalidateRedisList[T any](workspaceId string) error {
	typeName := GetTypeName[T]()
	return config.RemoveRedisKey(typeName + ":List:" + workspaceId)
}
